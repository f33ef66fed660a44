package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"blogpage/internal/config"
	"blogpage/internal/middleware"
	"blogpage/internal/models"
	"blogpage/internal/observability"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaRoot            = "media"
	DefaultImageMaxUploadSizeMB = 5
	// AvatarMaxSize bounds both avatar dimensions after every profile save.
	AvatarMaxSize = 300
	JPEGQuality   = 90
	WebPQuality   = 80

	defaultAvatarSize = 128
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// AvatarUpload is an image file received from the profile form.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService stores avatar uploads under the media root and keeps them
// within AvatarMaxSize.
type ImageService struct {
	mediaRoot          string
	maxUploadSizeBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	mediaRoot := DefaultMediaRoot
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB

	if cfg != nil {
		if cfg.MediaRoot != "" {
			mediaRoot = cfg.MediaRoot
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}

	return &ImageService{
		mediaRoot:          mediaRoot,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// MediaRoot is the directory avatars are stored under.
func (s *ImageService) MediaRoot() string {
	return s.mediaRoot
}

// Path resolves a media-relative name to a file path, refusing names that
// escape the media root.
func (s *ImageService) Path(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", models.NewValidationError("Invalid media path")
	}
	return filepath.Join(s.mediaRoot, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// StoreAvatar validates an upload and writes it to profile_pics/ with a unique
// name. It returns the media-relative path to store on the profile.
func (s *ImageService) StoreAvatar(ctx context.Context, in AvatarUpload) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("The submitted file is empty.")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := mimetype.Detect(in.Content)
	if !isAllowedImageMIME(detected.String()) {
		return "", models.NewValidationError("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detected.String()) {
		return "", models.NewValidationError("Image content type mismatch")
	}
	// A full decode catches truncated files whose header alone is valid.
	if _, _, err := image.Decode(bytes.NewReader(in.Content)); err != nil {
		return "", models.NewValidationError("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}

	rel := path.Join(models.ProfileImageDir, avatarFileName(in.Filename, detected.Extension()))
	full, err := s.Path(rel)
	if err != nil {
		return "", err
	}
	if err := writeBytesToFile(full, in.Content); err != nil {
		return "", models.NewInternalError(err)
	}
	middleware.Logger.DebugContext(ctx, "avatar stored", "path", rel, "bytes", len(in.Content))
	return rel, nil
}

// EnsureDefaultAvatar writes the placeholder avatar every new profile points
// at when the media root does not have one yet.
func (s *ImageService) EnsureDefaultAvatar() error {
	full, err := s.Path(models.DefaultProfileImage)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	img := image.NewRGBA(image.Rect(0, 0, defaultAvatarSize, defaultAvatarSize))
	xdraw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}}, image.Point{}, xdraw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return writeBytesToFile(full, buf.Bytes())
}

// RemoveMedia deletes a stored file. Missing files are ignored.
func (s *ImageService) RemoveMedia(rel string) {
	if rel == "" || rel == models.DefaultProfileImage {
		return
	}
	if full, err := s.Path(rel); err == nil {
		_ = os.Remove(full)
	}
}

// NormalizeAvatar downscales the stored image at rel so that neither side
// exceeds AvatarMaxSize, keeping the aspect ratio and overwriting the file in
// its original format. Images already within bounds are left untouched and a
// missing file is skipped. It reports whether the file was rewritten.
func (s *ImageService) NormalizeAvatar(ctx context.Context, rel string) (bool, error) {
	full, err := s.Path(rel)
	if err != nil {
		return false, err
	}

	// #nosec G304: full is confined to the media root by Path
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			observability.AvatarResizes.WithLabelValues("missing").Inc()
			middleware.Logger.WarnContext(ctx, "avatar file missing, skipping normalization", "path", rel)
			return false, nil
		}
		return false, models.NewInternalError(err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false, models.NewValidationError("Stored avatar is not a readable image")
	}
	if cfg.Width <= AvatarMaxSize && cfg.Height <= AvatarMaxSize {
		observability.AvatarResizes.WithLabelValues("untouched").Inc()
		return false, nil
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, models.NewValidationError("Stored avatar is not a readable image")
	}
	resized := resizeToFit(src, AvatarMaxSize, AvatarMaxSize)

	encoded, err := encodeAs(resized, format)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if err := writeBytesToFile(full, encoded); err != nil {
		return false, models.NewInternalError(err)
	}

	b := resized.Bounds()
	observability.AvatarResizes.WithLabelValues("resized").Inc()
	middleware.Logger.InfoContext(ctx, "avatar normalized",
		"path", rel,
		"from", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"to", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
	)
	return true, nil
}

// avatarFileName builds "<base>_<8 hex><ext>" from the client's file name.
func avatarFileName(original, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filepath.ToSlash(original)), filepath.Ext(original))
	base = unsafeNameChars.ReplaceAllString(strings.ToLower(base), "_")
	base = strings.Trim(base, "_-")
	if len(base) > 40 {
		base = base[:40]
	}
	if base == "" {
		base = "avatar"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return base + "_" + suffix + ext
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := math.Min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := clampDim(int(math.Round(float64(w)*scale)), maxWidth)
	newH := clampDim(int(math.Round(float64(h)*scale)), maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func clampDim(v, limit int) int {
	if v < 1 {
		return 1
	}
	if v > limit {
		return limit
	}
	return v
}

func encodeAs(img image.Image, format string) ([]byte, error) {
	switch format {
	case "jpeg":
		return encodeJPEG(img, JPEGQuality)
	case "webp":
		return encodeWebP(img, WebPQuality)
	case "gif":
		buf := bytes.NewBuffer(nil)
		if err := gif.Encode(buf, img, nil); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		buf := bytes.NewBuffer(nil)
		if err := png.Encode(buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func writeBytesToFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}
