// Package storage 提供了对话归档到对象存储（MinIO）的功能。
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cora-trainer-go/internal/config"
	"cora-trainer-go/internal/model"
	"cora-trainer-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultURLExpiry 是归档下载链接的默认有效期。
const DefaultURLExpiry = 15 * time.Minute

// ErrObjectNotFound 表示归档对象不存在。
var ErrObjectNotFound = errors.New("archived transcript not found")

// TranscriptArchive 把分析完成的对话存为 JSON 对象。
type TranscriptArchive struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewTranscriptArchive 初始化 MinIO 客户端并确保存储桶存在。
func NewTranscriptArchive(cfg config.MinIOConfig) (*TranscriptArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Info("MinIO 客户端初始化成功")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &TranscriptArchive{client: client, bucket: cfg.BucketName, expiry: DefaultURLExpiry}, nil
}

// ObjectName 返回对话归档的对象路径，用户标识不区分大小写。
func ObjectName(userKey, conversationID string) string {
	return fmt.Sprintf("transcripts/%s/%s.json", url.PathEscape(strings.ToLower(strings.TrimSpace(userKey))), url.PathEscape(conversationID))
}

// Put 上传一份对话归档，同名对象被覆盖。
func (a *TranscriptArchive) Put(ctx context.Context, record model.TranscriptRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, a.bucket, ObjectName(record.UserKey, record.ConversationID),
		bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// PresignedURL 为已归档的对话生成临时下载链接。
func (a *TranscriptArchive) PresignedURL(ctx context.Context, userKey, conversationID string) (string, error) {
	object := ObjectName(userKey, conversationID)
	if _, err := a.client.StatObject(ctx, a.bucket, object, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrObjectNotFound
		}
		return "", err
	}
	u, err := a.client.PresignedGetObject(ctx, a.bucket, object, a.expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return u.String(), nil
}
