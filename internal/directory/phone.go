package directory

import (
	"strings"

	"github.com/hitoshi/storeadmin/internal/model"
)

// phoneResolver は1ユーザー分の住所から電話番号を1つ選ぶ。選べない場合は空文字を返す。
type phoneResolver func(addresses []*model.Address) string

// addressPhoneResolvers は住所から電話番号を解決する優先順位。
// 先頭から評価し、最初に空でない結果を採用する。
var addressPhoneResolvers = []phoneResolver{
	defaultAddressPhone,
	latestAddressPhone,
}

// resolvePhone はユーザーの電話番号を住所の優先順位に従って解決する。
// 住所から得られない場合はユーザー自身の電話番号を使う。
func resolvePhone(user *model.User, addresses []*model.Address) string {
	for _, resolve := range addressPhoneResolvers {
		if phone := resolve(addresses); phone != "" {
			return phone
		}
	}
	return strings.TrimSpace(user.Phone)
}

// defaultAddressPhone はデフォルト住所の電話番号を返す。
// デフォルト住所が複数ある場合は入力順で最初に電話番号を持つものを採用する。
func defaultAddressPhone(addresses []*model.Address) string {
	for _, addr := range addresses {
		if !addr.IsDefault {
			continue
		}
		if phone := strings.TrimSpace(addr.Phone); phone != "" {
			return phone
		}
	}
	return ""
}

// latestAddressPhone は電話番号を持つ住所のうち作成日時が最も新しいものの電話番号を返す。
// 作成日時が同じ場合は入力順で先のものを採用する。
func latestAddressPhone(addresses []*model.Address) string {
	var latest *model.Address
	for _, addr := range addresses {
		if strings.TrimSpace(addr.Phone) == "" {
			continue
		}
		if latest == nil || addr.CreatedAt.After(latest.CreatedAt) {
			latest = addr
		}
	}
	if latest == nil {
		return ""
	}
	return strings.TrimSpace(latest.Phone)
}

// groupByUser は住所を所有ユーザーIDごとにまとめる。各グループ内は入力順を保つ。
func groupByUser(addresses []*model.Address) map[string][]*model.Address {
	grouped := make(map[string][]*model.Address)
	for _, addr := range addresses {
		grouped[addr.UserID] = append(grouped[addr.UserID], addr)
	}
	return grouped
}
