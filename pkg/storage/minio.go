// Package storage 提供了以 MinIO 作为远端存储的提交实现。
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"pand-feedback-go/internal/config"
	"pand-feedback-go/internal/model"
	"pand-feedback-go/pkg/log"
)

// MinIOStore 把反馈文件写入 MinIO 存储桶，语义与 GitHub 提交一致：单次覆盖写入。
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	exportDir string
}

// NewMinIOStore 创建 MinIO 客户端。Endpoint 为空时返回一个只做本机下载的 store。
func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	s := &MinIOStore{bucket: cfg.BucketName, exportDir: cfg.ExportDir}
	if cfg.Endpoint == "" {
		return s, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	s.client = client
	log.Info("MinIO 客户端初始化成功")
	return s, nil
}

// Enabled 报告是否配置了 MinIO。
func (s *MinIOStore) Enabled() bool {
	return s.client != nil
}

// Name 返回远端存储的名称。
func (s *MinIOStore) Name() string {
	return config.BackendMinIO
}

// EnsureBucket 检查存储桶是否存在，不存在则创建。
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if exists {
		log.Infof("存储桶 '%s' 已存在", s.bucket)
		return nil
	}
	log.Infof("存储桶 '%s' 不存在，正在创建...", s.bucket)
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
	}
	log.Infof("存储桶 '%s' 创建成功", s.bucket)
	return nil
}

// ObjectName 返回文件在存储桶中的对象名。
func (s *MinIOStore) ObjectName(filename string) string {
	return path.Join(s.exportDir, filename)
}

// Commit 写入 {exportDir}/{filename}，同名对象直接覆盖。
func (s *MinIOStore) Commit(ctx context.Context, filename, content string) model.CommitOutcome {
	if !s.Enabled() {
		log.Infof("[MinIOStore] 未配置 endpoint，跳过远端提交: %s", filename)
		return model.Degraded(model.MessageLocalOnly)
	}

	objectName := s.ObjectName(filename)
	info, err := s.client.PutObject(ctx, s.bucket, objectName, strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		reason := err.Error()
		if resp := minio.ToErrorResponse(err); resp.Message != "" {
			reason = resp.Message
		}
		log.Errorf("[MinIOStore] 写入对象失败: %s, error: %v", objectName, err)
		return model.Failed(fmt.Sprintf(model.MessageFailureFormat, reason))
	}

	log.Infow("[MinIOStore] 文件写入成功", "bucket", s.bucket, "object", objectName, "etag", info.ETag)
	return model.Committed(model.MessageCommitted)
}
