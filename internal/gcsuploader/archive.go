package gcsuploader

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Archiver stores raw uploads under
// <prefix>/<household>/<yyyy>/<mm>/<dd>/<upload id>-<filename>.
type Archiver struct {
	svc    StorageService
	bucket string
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver writing to bucket.
func NewArchiver(svc StorageService, bucket, prefix string) *Archiver {
	return &Archiver{
		svc:    svc,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Archive uploads content and returns its gs:// URI.
func (a *Archiver) Archive(ctx context.Context, householdID, uploadID, filename string, content []byte) (string, error) {
	object := a.objectName(householdID, uploadID, filename)
	if err := a.svc.Put(ctx, a.bucket, object, content); err != nil {
		return "", fmt.Errorf("Archive: %w", err)
	}
	return "gs://" + a.bucket + "/" + object, nil
}

func (a *Archiver) objectName(householdID, uploadID, filename string) string {
	base := sanitizeSegment(path.Base(filename))
	if base == "" || base == "." {
		base = "upload"
	}
	household := sanitizeSegment(householdID)
	if household == "" {
		household = "unknown"
	}
	return path.Join(a.prefix, household, a.now().Format("2006/01/02"), uploadID+"-"+base)
}

// sanitizeSegment drops characters that would change the object path.
func sanitizeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}
