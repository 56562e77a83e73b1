package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shipfast-storefront/internal/catalog"
	"github.com/mmeshcher/shipfast-storefront/internal/events"
	"github.com/mmeshcher/shipfast-storefront/internal/licensing"
	"github.com/mmeshcher/shipfast-storefront/internal/model"
	"github.com/mmeshcher/shipfast-storefront/internal/repository"
	"github.com/mmeshcher/shipfast-storefront/internal/validation"
)

// DownloadRequest описывает запрос ссылки на скачивание сборки.
type DownloadRequest struct {
	LicenseKey string
	Version    string
	IP         string
	UserAgent  string
}

// DownloadLicense содержит сведения о лицензии в ответе на скачивание.
type DownloadLicense struct {
	PlanName      string    `json:"planName"`
	DownloadCount int       `json:"downloadCount"`
	MaxDownloads  int       `json:"maxDownloads"`
	ExpiryDate    time.Time `json:"expiryDate"`
}

// DownloadResult содержит подписанную ссылку на архив сборки.
type DownloadResult struct {
	Success     bool            `json:"success"`
	DownloadURL string          `json:"downloadUrl"`
	ExpiresIn   string          `json:"expiresIn"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	Filename    string          `json:"filename"`
	Version     string          `json:"version"`
	License     DownloadLicense `json:"license"`
}

// Download проверяет лицензию, списывает одно скачивание и выдаёт подписанную ссылку.
func (s *Service) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	key := strings.TrimSpace(req.LicenseKey)
	if !validation.IsLicenseKeyShape(key) {
		return nil, validationError(map[string]string{
			"licenseKey": "must be a valid license key of at least 16 characters",
		})
	}

	// версию проверяем до списания, чтобы не тратить квоту на неизвестную сборку
	release, ok := catalog.Release(req.Version)
	if !ok {
		return nil, validationError(map[string]string{"version": "unknown version"})
	}

	now := s.now().UTC()
	license, err := s.repo.ConsumeDownload(ctx, key, now)
	if err != nil {
		if verr := licenseRejection(err); verr != nil {
			s.logger.Info("download rejected",
				zap.String("license", licensing.MaskKey(key)),
				zap.String("reason", verr.Details["reason"].(string)),
			)
			return nil, verr
		}
		s.logger.Error("consume download error", zap.Error(err), zap.String("license", licensing.MaskKey(key)))
		return nil, internalError(err)
	}

	plan, _ := catalog.Plan(license.PlanID)
	artifact := catalog.ArtifactName(license.PlanID, release.Version)
	signed := s.signer.Sign(license.ID, artifact)

	activity := model.DownloadActivity{
		ID:        "dl_" + uuid.NewString(),
		LicenseID: license.ID,
		Version:   release.Version,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		CreatedAt: now,
	}
	if err := s.repo.RecordDownload(ctx, activity); err != nil {
		s.logger.Warn("record download error", zap.Error(err), zap.String("license_id", license.ID))
	}

	s.publish(ctx, events.SubjectDownloadRecorded, events.DownloadRecorded{
		LicenseID:     license.ID,
		Version:       release.Version,
		DownloadCount: license.DownloadCount,
		IP:            req.IP,
		UserAgent:     req.UserAgent,
		Timestamp:     now,
	})

	return &DownloadResult{
		Success:     true,
		DownloadURL: signed.Path,
		ExpiresIn:   "15 minutes",
		ExpiresAt:   signed.ExpiresAt.UTC(),
		Filename:    signed.Filename,
		Version:     release.Version,
		License: DownloadLicense{
			PlanName:      plan.Name,
			DownloadCount: license.DownloadCount,
			MaxDownloads:  license.MaxDownloads,
			ExpiryDate:    license.ExpiresAt,
		},
	}, nil
}

// licenseRejection переводит отказ хранилища в ошибку license_validation_failed.
// Для остальных ошибок возвращает nil.
func licenseRejection(err error) *Error {
	var reason, msg string
	switch {
	case errors.Is(err, repository.ErrLicenseNotFound):
		reason, msg = ReasonLicenseNotFound, "License not found"
	case errors.Is(err, repository.ErrLicenseInactive):
		reason, msg = ReasonLicenseNotFound, "License is not active"
	case errors.Is(err, repository.ErrLicenseExpired):
		reason, msg = ReasonLicenseExpired, "License has expired"
	case errors.Is(err, repository.ErrDownloadQuotaExceeded):
		reason, msg = ReasonDownloadQuotaExceeded, "Download limit reached for this license"
	default:
		return nil
	}
	return &Error{
		Kind:    KindLicenseValidationFailed,
		Message: msg,
		Details: map[string]any{"reason": reason},
		Err:     err,
	}
}

// ArtifactRequest содержит параметры подписанной ссылки на архив.
type ArtifactRequest struct {
	File      string
	LicenseID string
	Expires   string
	Token     string
}

// ResolveArtifact проверяет подписанную ссылку и возвращает путь к архиву на диске.
func (s *Service) ResolveArtifact(ctx context.Context, req ArtifactRequest) (string, error) {
	name := filepath.Base(req.File)
	if name != req.File || !strings.HasSuffix(name, ".zip") {
		return "", newError(KindNotFound, "File not found")
	}
	artifact := strings.TrimSuffix(name, ".zip")

	if err := s.signer.Verify(req.LicenseID, artifact, req.Expires, req.Token); err != nil {
		switch {
		case errors.Is(err, licensing.ErrLinkExpired):
			return "", &Error{Kind: KindLinkExpired, Message: "Download link has expired", Err: err}
		default:
			return "", &Error{Kind: KindInvalidSignature, Message: "Invalid download link", Err: err}
		}
	}

	license, err := s.repo.GetLicenseByID(ctx, req.LicenseID)
	if err != nil {
		if errors.Is(err, repository.ErrLicenseNotFound) {
			return "", newError(KindNotFound, "License not found")
		}
		return "", internalError(err)
	}
	if !license.Active {
		return "", &Error{
			Kind:    KindLicenseValidationFailed,
			Message: "License is not active",
			Details: map[string]any{"reason": ReasonLicenseNotFound},
		}
	}

	path := filepath.Join(s.cfg.ArtifactsDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", newError(KindNotFound, "File not found")
	}
	return path, nil
}
