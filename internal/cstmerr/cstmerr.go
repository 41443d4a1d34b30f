package cstmerr

import (
	"fmt"
)

// BaseError provides a base for custom errors, allowing for wrapped errors.
type BaseError struct {
	Msg string
	Err error // Underlying error
}

func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *BaseError) Unwrap() error {
	return e.Err
}

// ConfigError indicates a problem with configuration or a missing identity field.
type ConfigError struct{ BaseError }

func NewConfigError(msg string, underlyingErr error) *ConfigError {
	return &ConfigError{BaseError{Msg: msg, Err: underlyingErr}}
}

// NetworkError indicates the manifest or report request never produced a usable response.
type NetworkError struct{ BaseError }

func NewNetworkError(msg string, underlyingErr error) *NetworkError {
	return &NetworkError{BaseError{Msg: "Network error: " + msg, Err: underlyingErr}}
}

// ParseError indicates a response body that could not be decoded.
type ParseError struct{ BaseError }

func NewParseError(msg string, underlyingErr error) *ParseError {
	return &ParseError{BaseError{Msg: "Parse error: " + msg, Err: underlyingErr}}
}

// ApplyError indicates the bundle could not be downloaded or installed.
type ApplyError struct {
	BaseError
	Version int
}

func NewApplyError(version int, underlyingErr error) *ApplyError {
	return &ApplyError{
		BaseError: BaseError{Msg: fmt.Sprintf("failed to apply bundle version %d", version), Err: underlyingErr},
		Version:   version,
	}
}

// APIRequestFailedError indicates an API request returned a non-success status.
type APIRequestFailedError struct {
	BaseError
	StatusCode int
	Message    string // Message from API response body
}

func NewAPIRequestFailedError(statusCode int, message string) *APIRequestFailedError {
	return &APIRequestFailedError{
		BaseError:  BaseError{Msg: fmt.Sprintf("API request failed with status %d", statusCode)},
		StatusCode: statusCode,
		Message:    message,
	}
}
func (e *APIRequestFailedError) Error() string {
	return fmt.Sprintf("%s - %s", e.BaseError.Msg, e.Message)
}

// DownloadError indicates a problem during file download.
type DownloadError struct{ BaseError }

func NewDownloadError(msg string) *DownloadError {
	return &DownloadError{BaseError{Msg: "Download error: " + msg}}
}

// TimeoutError indicates a timeout during an operation.
type TimeoutError struct{ BaseError }

func NewTimeoutError(underlyingErr error) *TimeoutError {
	return &TimeoutError{BaseError{Msg: "Timeout error", Err: underlyingErr}}
}

// HeadError indicates a problem with the HEAD request.
type HeadError struct{ BaseError }

func NewHeadError(msg string) *HeadError {
	return &HeadError{BaseError{Msg: "Head error: " + msg}}
}

// ArchiveError indicates a problem with archive creation or extraction.
type ArchiveError struct{ BaseError }

func NewArchiveError(msg string, underlyingErr error) *ArchiveError {
	return &ArchiveError{BaseError{Msg: "Archive error: " + msg, Err: underlyingErr}}
}

// FileSystemError indicates a general filesystem problem.
type FileSystemError struct{ BaseError }

func NewFileSystemError(msg string) *FileSystemError {
	return &FileSystemError{BaseError{Msg: "Filesystem error: " + msg}}
}

// FileIOError indicates an I/O problem during file operations.
type FileIOError struct{ BaseError }

func NewFileIOError(msg string, underlyingErr error) *FileIOError {
	return &FileIOError{BaseError{Msg: "I/O error during file operation: " + msg, Err: underlyingErr}}
}

type RetryError struct{ BaseError }

func NewRetryError(msg string, underlyingError error) *RetryError {
	return &RetryError{BaseError{Msg: "Retry error: " + msg, Err: underlyingError}}
}

// StoreError indicates a failure in the on-device bundle registry.
type StoreError struct{ BaseError }

func NewStoreError(msg string, underlyingErr error) *StoreError {
	return &StoreError{BaseError{Msg: "Store error: " + msg, Err: underlyingErr}}
}

type DBError struct{ BaseError }

func NewDBError(msg string, underlyingErr error) *DBError {
	return &DBError{BaseError{Msg: "Database error: " + msg, Err: underlyingErr}}
}

// DBConnectionError indicates a problem connecting to the database.
type DBConnectionError struct{ BaseError }

func NewDBConnectionError(msg string, underlyingErr error) *DBConnectionError {
	return &DBConnectionError{BaseError{Msg: "DB connection error: " + msg, Err: underlyingErr}}
}

// DBQueryError indicates a problem executing a database query.
type DBQueryError struct{ BaseError }

func NewDBQueryError(msg string, underlyingErr error) *DBQueryError {
	return &DBQueryError{BaseError{Msg: "DB query error: " + msg, Err: underlyingErr}}
}

// BuildError indicates the platform bundler command failed.
type BuildError struct {
	BaseError
	Platform string
}

func NewBuildError(platform string, underlyingErr error) *BuildError {
	return &BuildError{
		BaseError: BaseError{Msg: fmt.Sprintf("%s bundle build failed", platform), Err: underlyingErr},
		Platform:  platform,
	}
}

// UploadError indicates the bundle upload was rejected or never reached the server.
type UploadError struct {
	BaseError
	Platform string
}

func NewUploadError(platform string, underlyingErr error) *UploadError {
	return &UploadError{
		BaseError: BaseError{Msg: fmt.Sprintf("%s bundle upload failed", platform), Err: underlyingErr},
		Platform:  platform,
	}
}
