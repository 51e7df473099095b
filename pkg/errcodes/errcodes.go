package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"
	InvalidURL          failure.ErrorCode = "InvalidURL"

	// Карточки и оценки
	CardNotFound             failure.ErrorCode = "CardNotFound"
	InvalidCard              failure.ErrorCode = "InvalidCard"
	InvalidGrade             failure.ErrorCode = "InvalidGrade"
	ExtrapolationUnavailable failure.ErrorCode = "ExtrapolationUnavailable" // нет строки в таблице тиражей

	// Маркетплейс и сессии браузера
	FetchTransient  failure.ErrorCode = "FetchTransient"  // таймаут, обрыв соединения, 429
	SessionUnusable failure.ErrorCode = "SessionUnusable" // драйвер упал или не отвечает
	PoolClosed      failure.ErrorCode = "PoolClosed"

	// Задачи планировщика
	TaskTimeout   failure.ErrorCode = "TaskTimeout"
	TaskCanceled  failure.ErrorCode = "TaskCanceled"
	TaskPanicked  failure.ErrorCode = "TaskPanicked"
	InvalidTaskID failure.ErrorCode = "InvalidTaskID"
)
