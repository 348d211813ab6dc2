package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// ObjectStorage - интерфейс хранилища изображений раскадровки.
type ObjectStorage interface {
	// Upload загружает объект и возвращает его публичный URL.
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
	// DeletePrefix удаляет все объекты с указанным префиксом пути.
	DeletePrefix(ctx context.Context, prefix string) error
}

// SupabaseStorageConfig - настройки подключения к Supabase Storage.
type SupabaseStorageConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// supabaseStorage реализует ObjectStorage поверх Supabase Storage.
type supabaseStorage struct {
	client  *storage_go.Client
	bucket  string
	baseURL string
	logger  *zap.Logger
}

var _ ObjectStorage = (*supabaseStorage)(nil)

// NewSupabaseStorage создает клиент Supabase Storage.
func NewSupabaseStorage(cfg SupabaseStorageConfig, logger *zap.Logger) ObjectStorage {
	baseURL := strings.TrimSuffix(cfg.URL, "/")
	client := storage_go.NewClient(baseURL+"/storage/v1", cfg.ServiceRoleKey, nil)

	return &supabaseStorage{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		logger:  logger.Named("ObjectStorage"),
	}
}

func (s *supabaseStorage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	upsert := true
	_, err := s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", objectPath, err)
	}

	publicURL := fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
	s.logger.Debug("Object uploaded", zap.String("path", objectPath), zap.Int("size_bytes", len(data)))
	return publicURL, nil
}

func (s *supabaseStorage) DeletePrefix(ctx context.Context, prefix string) error {
	files, err := s.client.ListFiles(s.bucket, prefix, storage_go.FileSearchOptions{Limit: 1000})
	if err != nil {
		return fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
	}
	if len(files) == 0 {
		return nil
	}

	filePaths := make([]string, len(files))
	for i, file := range files {
		filePaths[i] = prefix + file.Name
	}
	if _, err := s.client.RemoveFile(s.bucket, filePaths); err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}

	s.logger.Info("Objects deleted", zap.String("prefix", prefix), zap.Int("count", len(filePaths)))
	return nil
}
