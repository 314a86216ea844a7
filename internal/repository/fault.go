package repository

import (
	"errors"

	"github.com/lib/pq"

	"github.com/hitoshi/storeadmin/internal/model"
)

// PostgreSQLのSQLSTATE
const (
	sqlStateUndefinedTable        pq.ErrorCode = "42P01"
	sqlStateInsufficientPrivilege pq.ErrorCode = "42501"
)

// ClassifyError はcollectionへの問い合わせで発生したエラーを分類する。
// 取得・削除のどちらの経路でもこの関数で分類する。
// errがnilの場合はnilを返す。既に分類済みのStoreFaultはそのまま返す。
func ClassifyError(collection string, err error) *model.StoreFault {
	if err == nil {
		return nil
	}

	var fault *model.StoreFault
	if errors.As(err, &fault) {
		return fault
	}

	kind := model.FaultUnknown
	detail := err.Error()

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		detail = pqErr.Message
		switch pqErr.Code {
		case sqlStateUndefinedTable:
			kind = model.FaultMissingRelation
		case sqlStateInsufficientPrivilege:
			kind = model.FaultPermissionDenied
		}
	}

	return &model.StoreFault{
		Kind:       kind,
		Collection: collection,
		Detail:     detail,
		Err:        err,
	}
}
