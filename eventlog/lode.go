package eventlog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// LodeConfig names the Hive partition keys a LodeSink writes under,
// mirroring the dataset/source/category partitioning lode/client.go uses
// for the (deleted) production ingestion path.
type LodeConfig struct {
	Dataset  string
	Source   string
	Category string
}

// S3Config configures the S3 storage backend for a dev LodeSink, grounded
// on lode/client_s3.go's S3Config.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// LodeSink is a lode-backed dev sink: a convenient local or S3-compatible
// place to inspect job events while developing against derpd, not the
// authoritative eventlog collaborator spec.md §7 treats as external.
type LodeSink struct {
	dataset lode.Dataset
	config  LodeConfig
}

func newLodeSink(cfg LodeConfig, factory lode.StoreFactory) (*LodeSink, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout("source", "category", "day", "rank", "kind"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: create lode dataset: %w", err)
	}
	return &LodeSink{dataset: ds, config: cfg}, nil
}

// NewFSLodeSink creates a filesystem-backed dev sink rooted at root.
func NewFSLodeSink(cfg LodeConfig, root string) (*LodeSink, error) {
	return newLodeSink(cfg, lode.NewFSFactory(root))
}

// NewS3LodeSink creates an S3-backed dev sink using the AWS SDK's default
// credential chain (env vars, shared config, IAM role), grounded on
// lode/client_s3.go's NewLodeS3Client.
func NewS3LodeSink(cfg LodeConfig, s3cfg S3Config) (*LodeSink, error) {
	if s3cfg.Bucket == "" {
		return nil, fmt.Errorf("eventlog: S3 bucket is required")
	}

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if s3cfg.Endpoint != "" {
		endpoint := s3cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if s3cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	s3Client := s3.NewFromConfig(awsConfig, s3Opts...)

	factory := func() (lode.Store, error) {
		return lodes3.New(s3Client, lodes3.Config{Bucket: s3cfg.Bucket, Prefix: s3cfg.Prefix})
	}
	return newLodeSink(cfg, factory)
}

func (s *LodeSink) Write(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]any, 0, len(events))
	for _, e := range events {
		records = append(records, map[string]any{
			"source":   s.config.Source,
			"category": s.config.Category,
			"day":      e.At.UTC().Format("2006-01-02"),
			"rank":     strconv.Itoa(int(e.Rank)),
			"kind":     string(e.Kind),
			"job_id":   e.JobID,
			"trace_id": e.TraceID,
			"status":   e.Status,
			"at":       e.At.UTC(),
		})
	}
	_, err := s.dataset.Write(ctx, records, lode.Metadata{})
	return err
}

func (s *LodeSink) Close() error { return nil }

var _ Sink = (*LodeSink)(nil)
