package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	//在庫不足。確定処理全体を取り消す（409）
	ErrInsufficientStock = errors.New("insufficient stock")
	//注文がPENDINGでないなど、確定できない状態（409）
	ErrOrderNotSettleable = errors.New("order not settleable")
)

// 何もせずに正常終了させる（重複配信・他のリクエストが先に確定した等）。Txはrollbackする
var errNoop = errors.New("noop")

type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 原因を持たせたHTTPError。errors.Isで原因を辿れる
func WrapHTTPError(status int, message string, err error) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Err:     err,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func dbError(err error) error {
	return WrapHTTPError(http.StatusInternalServerError, "db error", err)
}

// すでにHTTPErrorならそのまま、それ以外はdb error
func asDBError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	return dbError(err)
}
