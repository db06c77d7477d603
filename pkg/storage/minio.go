// Package storage提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"paydash-go/internal/config"
	"paydash-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// ErrNoImages 表示图片前缀下没有任何对象。
var ErrNoImages = errors.New("no images under prefix")

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		if err := MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucketName)
	}
}

// GetPresignedURL generates a presigned URL for a given object.
func GetPresignedURL(ctx context.Context, client *minio.Client, bucketName, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := client.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}

// ImageRefScheme 是持久化在消息中的图片引用前缀，形如 minio://bucket/key。
// 预签名地址会过期，所以消息只保存引用，读取时再签名。
const ImageRefScheme = "minio://"

// ImageSource 从存储桶的图片前缀下随机选出一个对象。
type ImageSource struct {
	client *minio.Client
	cfg    config.MinIOConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewImageSource 创建 ImageSource。
func NewImageSource(client *minio.Client, cfg config.MinIOConfig) *ImageSource {
	return &ImageSource{
		client: client,
		cfg:    cfg,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ImageRef 实现了 composer.ImageSource，返回对象的稳定引用。
func (s *ImageSource) ImageRef(ctx context.Context) (string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.cfg.BucketName, minio.ListObjectsOptions{Prefix: s.cfg.ImagePrefix, Recursive: true}) {
		if obj.Err != nil {
			return "", obj.Err
		}
		if obj.Size > 0 {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return "", ErrNoImages
	}
	sort.Strings(keys)

	s.mu.Lock()
	key := keys[s.rnd.Intn(len(keys))]
	s.mu.Unlock()

	return FormatImageRef(s.cfg.BucketName, key), nil
}

// Resolve 把引用转换为新的预签名地址。不是 minio 引用的地址原样返回。
func (s *ImageSource) Resolve(ctx context.Context, ref string) (string, error) {
	bucket, key, ok := ParseImageRef(ref)
	if !ok {
		return ref, nil
	}
	return GetPresignedURL(ctx, s.client, bucket, key, s.cfg.URLExpiry)
}

// FormatImageRef 组装图片引用。
func FormatImageRef(bucket, key string) string {
	return ImageRefScheme + bucket + "/" + key
}

// ParseImageRef 拆分图片引用，ref 不是合法引用时 ok 为 false。
func ParseImageRef(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, ImageRefScheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
