package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"postflow/internal/llm"
	"postflow/internal/logger"
	"postflow/internal/metrics"
	"postflow/internal/model"
	"postflow/internal/repository"
	"postflow/internal/storage"
)

// AllowedMediaTypes are the image types accepted for upload.
var AllowedMediaTypes = []string{"image/jpeg", "image/png", "image/gif"}

// GeneratorSource resolves a caption generator by provider name.
type GeneratorSource interface {
	Get(name string) (llm.Generator, error)
}

// UploadInput describes a file already written to a temporary path by the
// transport layer. The temp file is always removed by Upload.
type UploadInput struct {
	UserID      string
	TempPath    string
	FileName    string
	Platform    string
	Provider    string
	Tone        string
	Audience    string
	Guidelines  string
	Description string
	// Caption and Tags override the generated values when set.
	Caption *string
	Tags    []string
}

// UploadService turns an uploaded image into a pending post.
type UploadService interface {
	Upload(ctx context.Context, in UploadInput) (*model.Post, error)
}

// UploadOptions bounds uploads.
type UploadOptions struct {
	MaxBytes int64
	MaxTags  int
}

type uploadService struct {
	users   repository.UserRepository
	posts   repository.PostRepository
	store   storage.Storage
	gens    GeneratorSource
	metrics *metrics.Pipeline
	log     *logger.Logger
	opts    UploadOptions
	now     func() time.Time
}

func NewUploadService(users repository.UserRepository, posts repository.PostRepository, store storage.Storage, gens GeneratorSource, m *metrics.Pipeline, log *logger.Logger, opts UploadOptions) UploadService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5 << 20
	}
	return &uploadService{users: users, posts: posts, store: store, gens: gens, metrics: m, log: log.With("upload"), opts: opts, now: time.Now}
}

func (s *uploadService) Upload(ctx context.Context, in UploadInput) (*model.Post, error) {
	if in.TempPath == "" {
		return nil, ErrFileRequired
	}
	defer s.removeTemp(in.TempPath)

	ctx, span := tracer.Start(ctx, "upload", trace.WithAttributes(attribute.String("user.id", in.UserID)))
	defer span.End()

	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, notFound(err, "find user")
	}
	if !user.Approved {
		return nil, ErrUserNotApproved
	}

	info, err := os.Stat(in.TempPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileRequired
		}
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	size := info.Size()
	if size > s.opts.MaxBytes {
		return nil, ErrFileTooLarge
	}

	mt, err := mimetype.DetectFile(in.TempPath)
	if err != nil {
		return nil, fmt.Errorf("detect media type: %w", err)
	}
	if !mimetype.EqualsAny(mt.String(), AllowedMediaTypes...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mt.String())
	}
	contentType := strings.Split(mt.String(), ";")[0]

	platform, ok := model.ParsePlatform(in.Platform)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, in.Platform)
	}

	var caption *string
	if in.Caption != nil && strings.TrimSpace(*in.Caption) != "" {
		c := strings.TrimSpace(*in.Caption)
		if len([]rune(c)) > model.MaxCaptionLength {
			return nil, invalid("caption", fmt.Sprintf("must be at most %d characters", model.MaxCaptionLength))
		}
		caption = &c
	}

	gen, err := s.gens.Get(in.Provider)
	if err != nil {
		return nil, invalid("provider", err.Error())
	}

	image, err := os.ReadFile(in.TempPath)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	start := time.Now()
	raw, err := gen.Generate(ctx, llm.Request{
		Image:       image,
		ContentType: contentType,
		Platform:    platform,
		Tone:        in.Tone,
		Audience:    in.Audience,
		Guidelines:  in.Guidelines,
		Description: in.Description,
		MaxTags:     s.opts.MaxTags,
	})
	s.metrics.Generation(gen.Name(), err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		s.log.Error("caption_generation_failed", err, map[string]any{"provider": string(gen.Name()), "user_id": user.ID})
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	res := llm.Normalize(raw)
	if s.opts.MaxTags > 0 && len(res.Tags) > s.opts.MaxTags {
		res.Tags = res.Tags[:s.opts.MaxTags]
	}
	if caption != nil {
		res.Caption = *caption
		res.CaptionGenerated = false
	}
	if tags := llm.NormalizeTags(in.Tags); len(tags) > 0 {
		res.Tags = tags
		res.TagsGenerated = false
	}
	if res.Description == "" {
		res.Description = strings.TrimSpace(in.Description)
	}

	key := path.Join("posts", user.ID, uuid.NewString()+mt.Extension())
	f, err := os.Open(in.TempPath)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	if _, err := s.store.Put(ctx, key, f, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata:    map[string]string{"original-filename": in.FileName},
	}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	provider := gen.Name()
	post, err := s.posts.Create(ctx, &model.Post{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Platform:    platform,
		FileRef:     key,
		FileName:    in.FileName,
		ContentType: contentType,
		Size:        size,
		Caption:     res.Caption,
		Description: res.Description,
		Tags:        res.Tags,
		Status:      model.StatusPending,
		CreatedAt:   s.now().UTC(),
		AIGenerated: model.AIGenerated{
			Caption:  res.CaptionGenerated,
			Tags:     res.TagsGenerated,
			Provider: &provider,
		},
	})
	if err != nil {
		span.RecordError(err)
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.log.Error("upload_rollback_failed", delErr, map[string]any{"key": key})
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	s.log.Info("post_uploaded", map[string]any{
		"post_id":  post.ID,
		"user_id":  user.ID,
		"platform": string(platform),
		"provider": string(provider),
		"size":     size,
	})
	return post, nil
}

func (s *uploadService) removeTemp(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("temp_remove_failed", err, map[string]any{"path": p})
	}
}
