package repository

import "errors"

var (
	// ErrLicenseNotFound возвращается, если лицензия с таким ключом или идентификатором не найдена.
	ErrLicenseNotFound = errors.New("license not found")
	// ErrLicenseInactive возвращается для отозванной лицензии.
	ErrLicenseInactive = errors.New("license is not active")
	// ErrLicenseExpired возвращается для лицензии с истёкшим сроком.
	ErrLicenseExpired = errors.New("license expired")
	// ErrDownloadQuotaExceeded возвращается, если квота скачиваний исчерпана.
	ErrDownloadQuotaExceeded = errors.New("download quota exceeded")
	// ErrDuplicateLicenseKey возвращается при конфликте уникального ключа лицензии.
	ErrDuplicateLicenseKey = errors.New("license key already exists")
	// ErrNotificationNotFound возвращается, если уведомление не найдено у владельца.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrTicketNotFound возвращается, если обращение не найдено у владельца.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrTicketClosed возвращается при попытке писать в закрытое обращение.
	ErrTicketClosed = errors.New("ticket is closed")
)
