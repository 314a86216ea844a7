package repository

import "errors"

// ErrNotFound は更新・削除対象の行が存在しないことを表す。
var ErrNotFound = errors.New("record not found")
