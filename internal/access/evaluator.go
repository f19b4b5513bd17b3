package access

import (
	"context"

	"Beacon/internal/topic"
	apperrors "Beacon/pkg/errors"
)

// Evaluator 结合归属查询做准入判断
type Evaluator struct {
	owners OwnerSource
}

func NewEvaluator(owners OwnerSource) *Evaluator {
	return &Evaluator{owners: owners}
}

// Admit 判断能否加入主题，返回报警归属供连接在生命周期内复用。
// 报警不存在时返回 not_found。
func (e *Evaluator) Admit(ctx context.Context, p Principal, t topic.Topic) (string, error) {
	if !p.Authenticated() {
		return "", apperrors.Unauthorized("authentication required")
	}

	var owner string
	if t.Family.AlertScoped() {
		var err error
		owner, err = e.owners.Owner(ctx, t.ID)
		if err != nil {
			return "", err
		}
	}
	if !CanSubscribe(p, t, owner) {
		return "", apperrors.Forbidden("access to " + t.String() + " denied")
	}
	return owner, nil
}

// Owner 单独查询归属
func (e *Evaluator) Owner(ctx context.Context, alertID string) (string, error) {
	return e.owners.Owner(ctx, alertID)
}
