package models

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleReferee Role = "referee"
	RolePlayer  Role = "player"
	RoleViewer  Role = "viewer"
)

// ParseRole 알 수 없는 역할은 viewer로 취급
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleReferee, RolePlayer:
		return Role(s)
	default:
		return RoleViewer
	}
}

// CanScore 점수를 수정할 수 있는 역할인지
func (r Role) CanScore() bool {
	return r == RoleAdmin || r == RoleReferee
}

// Actor 변경을 요청한 주체 (인증 제공자가 공급)
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}
