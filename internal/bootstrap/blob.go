package bootstrap

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tandm-app/tandm/config"
	"github.com/tandm-app/tandm/internal/blob"
)

// OpenBlob returns the uploader for profile images.
func OpenBlob(ctx context.Context, cfg *config.Config, app *firebase.App) (blob.Uploader, error) {
	bucket := cfg.BucketName()

	switch cfg.Blob.Backend {
	case config.BlobNone:
		return blob.Disabled{}, nil

	case config.BlobFirebase:
		if app == nil {
			return nil, fmt.Errorf("firebase blob backend needs a firebase app")
		}
		client, err := app.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firebase storage: %w", err)
		}
		handle, err := client.Bucket(bucket)
		if err != nil {
			return nil, fmt.Errorf("open bucket %q: %w", bucket, err)
		}
		return blob.NewFirebase(handle, bucket), nil

	case config.BlobS3:
		awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Blob.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return blob.NewS3(s3.NewFromConfig(awsConf), bucket, cfg.Blob.URLExpiry), nil
	}

	return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
}
