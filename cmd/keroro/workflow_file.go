package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"keroro/internal/fileutil"
	"keroro/internal/workflow"
)

const (
	lockRetryDelay = 50 * time.Millisecond
	lockTimeout    = 5 * time.Second
)

func loadWorkflow(path string) (*workflow.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("workflow file %s not found; create it with `keroro workflow new`", path)
		}
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	var doc workflow.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", path, err)
	}
	if doc.Steps == nil {
		doc.Steps = []*workflow.Step{}
	}
	return &doc, nil
}

// writeWorkflow replaces path atomically. Callers hold the workflow lock.
func writeWorkflow(path string, doc *workflow.Document) error {
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	if err := fileutil.WriteAtomic(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("write workflow %s: %w", path, err)
	}
	return nil
}

func withWorkflowLock(ctx context.Context, path string, fn func() error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workflow directory %q: %w", dir, err)
	}
	lock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("acquire workflow lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("workflow %s is being edited by another keroro process", path)
	}
	defer lock.Unlock()
	return fn()
}

// updateWorkflow loads, edits and saves the document under the lock.
func updateWorkflow(ctx context.Context, path string, edit func(*workflow.Document) error) (*workflow.Document, error) {
	var doc *workflow.Document
	err := withWorkflowLock(ctx, path, func() error {
		loaded, err := loadWorkflow(path)
		if err != nil {
			return err
		}
		if err := edit(loaded); err != nil {
			return err
		}
		doc = loaded
		return writeWorkflow(path, loaded)
	})
	return doc, err
}

// replaceWorkflow writes doc under the lock, refusing to clobber an existing
// file unless overwrite is set.
func replaceWorkflow(ctx context.Context, path string, doc *workflow.Document, overwrite bool) error {
	return withWorkflowLock(ctx, path, func() error {
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("workflow file already exists at %s (use --overwrite to replace it)", path)
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("check workflow path: %w", err)
			}
		}
		return writeWorkflow(path, doc)
	})
}
