// Package staging delivers finished products to an S3-compatible object
// store after a fully successful run. Staging is optional and strictly
// last: a failed run never uploads partial results. Credentials come from
// the environment (standard AWS variables or MINIO_ACCESS_KEY /
// MINIO_SECRET_KEY), never from the runconfig document.
package staging

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/specialistvlad/pgerun/internal/ctxlog"
	"github.com/specialistvlad/pgerun/internal/product"
)

// Options configures one uploader. Values originate in the runconfig's
// StagingGroup.
type Options struct {
	Endpoint string
	Bucket   string
	Prefix   string
	UseSSL   bool
}

// Uploader stages product files and their ISO metadata siblings into one
// bucket.
type Uploader struct {
	client *minio.Client
	opts   Options
}

// New builds an uploader for the configured endpoint.
func New(opts Options) (*Uploader, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds: credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		}),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build staging client for %q: %w", opts.Endpoint, err)
	}
	return &Uploader{client: client, opts: opts}, nil
}

// UploadRun stages every product plus any rendered ISO metadata files.
// isoPaths maps a product's type token to its metadata file path; tokens
// without metadata are simply absent.
func (u *Uploader) UploadRun(ctx context.Context, products []product.Product, isoPaths map[string]string) error {
	logger := ctxlog.FromContext(ctx)

	for _, p := range products {
		if err := u.uploadFile(ctx, p.Path, contentType(p.Format)); err != nil {
			return err
		}
		logger.Info("📦 Product staged.", "type", p.TypeToken, "bucket", u.opts.Bucket)

		isoPath, ok := isoPaths[p.TypeToken]
		if !ok {
			continue
		}
		if err := u.uploadFile(ctx, isoPath, "text/xml"); err != nil {
			return err
		}
	}
	return nil
}

// uploadFile stages a single local file under the configured prefix.
func (u *Uploader) uploadFile(ctx context.Context, localPath, contentType string) error {
	objectName := u.objectName(localPath)
	_, err := u.client.FPutObject(ctx, u.opts.Bucket, objectName, localPath,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to stage %q to %s/%s: %w", localPath, u.opts.Bucket, objectName, err)
	}
	return nil
}

// objectName derives the object key: the configured prefix joined with the
// local base name.
func (u *Uploader) objectName(localPath string) string {
	return path.Join(u.opts.Prefix, filepath.Base(localPath))
}

// contentType maps a product format to the MIME type recorded on the object.
func contentType(format product.Format) string {
	switch format {
	case product.FormatGeoTIFF:
		return "image/tiff"
	case product.FormatHDF5:
		return "application/x-hdf5"
	case product.FormatNetCDF:
		return "application/x-netcdf"
	case product.FormatPNG:
		return "image/png"
	}
	return "application/octet-stream"
}
