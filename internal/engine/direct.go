package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pagegrab/pagegrab/internal/models"
)

// RunDirect downloads a single plain media file. Progress is byte-based when
// the server declares a Content-Length and indeterminate otherwise; the same
// event stream and task lifecycle apply as for segmented captures, minus the
// selecting and merging stages.
func (tr *Tracker) RunDirect(ctx context.Context, fileURL, filename string) (*models.DownloadTask, error) {
	task := tr.reg.Create(models.KindDirect, fileURL, filename)
	tr.setStage(task, models.StageDownloading, "Downloading...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return task, tr.fail(task, err)
	}
	for k, v := range tr.fetcher.headers {
		req.Header.Set(k, v)
	}

	resp, err := tr.fetcher.client.Do(req)
	if err != nil {
		return task, tr.fail(task, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return task, tr.fail(task, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, fileURL))
	}

	data, err := tr.readWithProgress(task, resp.Body, resp.ContentLength)
	if err != nil {
		return task, tr.fail(task, err)
	}

	if tr.reg.isCancelled(task.ID) {
		tr.finish(task, models.StageCancelled, "Download cancelled")
		return task, nil
	}

	tr.setStage(task, models.StageSaving, "Saving...")
	_, size, err := tr.store.Save(task.Filename, data)
	if err != nil {
		return task, tr.fail(task, err)
	}
	tr.reg.update(task, func(t *models.DownloadTask) {
		t.ResultSize = size
		t.ProgressPercent = 100
	})
	tr.finish(task, models.StageCompleted, "Download completed")
	return task, nil
}

const directChunkSize = 256 * 1024

func (tr *Tracker) readWithProgress(task *models.DownloadTask, r io.Reader, total int64) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, directChunkSize)
	var read int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			read += int64(n)
			if total > 0 {
				tr.bumpProgress(task, int(read*100/total))
				tr.emit(task, fmt.Sprintf("Downloaded %d/%d bytes", read, total))
			}
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}
}
