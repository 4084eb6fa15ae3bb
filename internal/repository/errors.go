package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	//一意制約違反
	ErrDuplicate = errors.New("duplicate")
	//条件付き更新で対象行の状態が変わっていた
	ErrStateConflict = errors.New("state conflict")
)
