package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

// Verifier runs one verification
type Verifier interface {
	Verify(ctx context.Context, req model.FlagRequest) (model.Claim, error)
}

// Scanner scans a whole page for suspicious passages
type Scanner interface {
	Scan(ctx context.Context, url string) (*model.ScanReport, error)
}

// VerifyResult is the outcome of verifying one request
type VerifyResult struct {
	Index   int
	Request model.FlagRequest
	Claim   *model.Claim
	Error   error
}

// ScanResult is the outcome of scanning one URL
type ScanResult struct {
	Index  int
	URL    string
	Report *model.ScanReport
	Error  error
}

// BatchProcessor runs verifications and scans concurrently
type BatchProcessor struct {
	verifier    Verifier
	scanner     Scanner
	concurrency int
}

// NewBatchProcessor creates a new batch processor. Either collaborator may be
// nil when the caller only uses the other.
func NewBatchProcessor(verifier Verifier, scanner Scanner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		scanner:     scanner,
		concurrency: concurrency,
	}
}

// VerifyAll verifies requests concurrently. Results are in request order;
// requests that never ran because ctx ended carry its cause.
func (b *BatchProcessor) VerifyAll(ctx context.Context, requests []model.FlagRequest) []*VerifyResult {
	return RunIndexed(ctx, b.concurrency, len(requests),
		func(ctx context.Context, i int) *VerifyResult {
			result := &VerifyResult{Index: i, Request: requests[i]}
			claim, err := b.verifier.Verify(ctx, requests[i])
			if err != nil {
				result.Error = err
				return result
			}
			result.Claim = &claim
			return result
		},
		func(i int) *VerifyResult {
			return &VerifyResult{Index: i, Request: requests[i], Error: context.Cause(ctx)}
		})
}

// ProcessURLs scans URLs concurrently. Results are in URL order.
func (b *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) []*ScanResult {
	return RunIndexed(ctx, b.concurrency, len(urls),
		func(ctx context.Context, i int) *ScanResult {
			report, err := b.scanner.Scan(ctx, urls[i])
			return &ScanResult{Index: i, URL: urls[i], Report: report, Error: err}
		},
		func(i int) *ScanResult {
			return &ScanResult{Index: i, URL: urls[i], Error: context.Cause(ctx)}
		})
}

// ProcessFile reads URLs from a file and scans them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ScanResult, error) {
	urls, err := ReadURLsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}

	return b.ProcessURLs(ctx, urls), nil
}

// ReadURLsFromFile reads URLs from a file (one per line)
func ReadURLsFromFile(filePath string) ([]string, error) {
	var urls []string
	seen := make(map[string]bool)

	err := readLines(filePath, func(line string) error {
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// ReadRequestsFromFile reads one JSON FlagRequest per line.
// Lines without a url take defaultURL.
func ReadRequestsFromFile(filePath, defaultURL string) ([]model.FlagRequest, error) {
	var requests []model.FlagRequest
	lineNo := 0

	err := readLines(filePath, func(line string) error {
		lineNo++
		var req model.FlagRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return fmt.Errorf("request %d: %w", lineNo, err)
		}
		if req.URL == "" {
			req.URL = defaultURL
		}
		requests = append(requests, req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// readLines calls fn for each trimmed line, skipping blanks and # comments
func readLines(filePath string, fn func(line string) error) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan file: %w", err)
	}
	return nil
}
