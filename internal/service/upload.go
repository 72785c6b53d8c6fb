package service

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

// UploadService 参考资料上传：原文件落盘，库里只存元数据
type UploadService struct {
	templateRepo repository.TemplateRepository
	uploadRepo   repository.UploadRepository
	uploadDir    string
}

func NewUploadService(templateRepo repository.TemplateRepository, uploadRepo repository.UploadRepository, uploadDir string) *UploadService {
	return &UploadService{
		templateRepo: templateRepo,
		uploadRepo:   uploadRepo,
		uploadDir:    uploadDir,
	}
}

// Store 保存上传文件。存储名用 UUID，避免同名覆盖与路径注入。
func (s *UploadService) Store(templateID uint, filename, contentType string, r io.Reader) (*model.Upload, error) {
	if _, err := s.templateRepo.Get(templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("template", templateID)
		}
		return nil, apperrors.NewStorage("template get", err)
	}
	if filename == "" {
		return nil, apperrors.NewValidation("filename is required")
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, apperrors.NewStorage("upload dir", err)
	}
	storedName := uuid.New().String() + filepath.Ext(filename)
	storedPath := filepath.Join(s.uploadDir, storedName)

	f, err := os.Create(storedPath)
	if err != nil {
		return nil, apperrors.NewStorage("upload create", err)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(storedPath)
		return nil, apperrors.NewStorage("upload write", err)
	}

	upload := &model.Upload{
		TemplateID:  templateID,
		Filename:    filepath.Base(filename),
		StoredPath:  storedPath,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if err := s.uploadRepo.Create(upload); err != nil {
		os.Remove(storedPath)
		return nil, apperrors.NewStorage("upload record", err)
	}
	klog.V(6).Infof("上传已保存: template=%d file=%s size=%d", templateID, upload.Filename, size)
	return upload, nil
}

func (s *UploadService) List(templateID uint) ([]model.Upload, error) {
	if _, err := s.templateRepo.Get(templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("template", templateID)
		}
		return nil, apperrors.NewStorage("template get", err)
	}
	uploads, err := s.uploadRepo.ListByTemplate(templateID)
	if err != nil {
		return nil, apperrors.NewStorage("upload list", err)
	}
	return uploads, nil
}

func (s *UploadService) Get(id uint) (*model.Upload, error) {
	upload, err := s.uploadRepo.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("upload", id)
	}
	if err != nil {
		return nil, apperrors.NewStorage("upload get", err)
	}
	return upload, nil
}

// Delete 先删记录再删文件；文件删除失败只告警
func (s *UploadService) Delete(id uint) error {
	upload, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.uploadRepo.Delete(id); err != nil {
		return apperrors.NewStorage("upload delete", err)
	}
	if err := os.Remove(upload.StoredPath); err != nil && !os.IsNotExist(err) {
		klog.Warningf("上传文件删除失败: %s err=%v", upload.StoredPath, err)
	}
	return nil
}
