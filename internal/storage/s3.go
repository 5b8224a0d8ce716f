package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// gcmMagic prefixes passphrase-encrypted objects so readers can recognize the
// container format: magic || 16-byte salt || 12-byte nonce || ciphertext.
const gcmMagic = "GCM3NCR0"

const (
	saltLen    = 16
	keyLen     = 32
	pbkdf2Iter = 100_000
)

// Options configures the S3 client.
type Options struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Client uploads finished PDFs, optionally encrypting them with a
// passphrase.
type S3Client struct {
	uploader *manager.Uploader
	client   *s3.Client
	bucket   string
}

// New creates an S3 client. Credentials come from the default chain unless a
// static key pair is configured.
func New(ctx context.Context, opts Options) (*S3Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket not configured")
	}
	var loadOpts []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		uploader: manager.NewUploader(cli),
		client:   cli,
		bucket:   opts.Bucket,
	}, nil
}

// UploadPDF stores body under key. When passphrase is non-empty the object is
// wrapped in the GCM container before upload and tagged via metadata.
func (c *S3Client) UploadPDF(ctx context.Context, key string, body io.Reader, passphrase string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	meta := map[string]string{}
	contentType := "application/pdf"
	if passphrase != "" {
		data, err = encrypt(data, passphrase)
		if err != nil {
			return "", fmt.Errorf("encrypt: %w", err)
		}
		meta["encryption-format"] = gcmMagic
		contentType = "application/octet-stream"
	}

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	url := fmt.Sprintf("s3://%s/%s", c.bucket, key)
	log.Info().Str("url", url).Int("size", len(data)).Bool("encrypted", passphrase != "").Msg("uploaded result")
	return url, nil
}

// ParseURL splits an s3://bucket/key reference.
func ParseURL(s3url string) (bucket, key string, err error) {
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if !strings.HasPrefix(s3url, "s3://") || slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	return path[:slash], path[slash+1:], nil
}

// encrypt wraps plaintext in the GCM container format.
func encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(gcmMagic)+len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt unwraps a GCM container produced by encrypt. Used by consumers of
// archived results and by tests.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	if len(data) < len(gcmMagic)+saltLen || string(data[:len(gcmMagic)]) != gcmMagic {
		return nil, fmt.Errorf("not a %s container", gcmMagic)
	}
	rest := data[len(gcmMagic):]
	salt := rest[:saltLen]
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	rest = rest[saltLen:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("container truncated")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}
