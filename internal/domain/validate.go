// Package domain 提供共享的输入校验规则。
package domain

import (
	"regexp"
	"strings"
)

// 乌兹别克斯坦手机号：+998 后跟 9 位数字
var phoneRe = regexp.MustCompile(`^\+998[0-9]{9}$`)

// 与原始系统保持一致的宽松邮箱格式
var emailRe = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// ValidPhone 校验 +998XXXXXXXXX 格式
func ValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}

// ValidEmail 校验邮箱格式；空值视为合法（邮箱是可选字段）
func ValidEmail(email string) bool {
	return email == "" || emailRe.MatchString(email)
}

// Violation 表示一条字段级校验违规
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations 是一次校验过程收集到的全部违规项。
// 校验器收集所有违规而不是在第一条处中断。
type Violations []Violation

// Add 追加一条违规
func (v *Violations) Add(field, message string) {
	*v = append(*v, Violation{Field: field, Message: message})
}

// OK 判断是否没有违规
func (v Violations) OK() bool { return len(v) == 0 }

// Error 实现 error 接口，聚合全部违规信息
func (v Violations) Error() string {
	if len(v) == 0 {
		return ""
	}
	msgs := make([]string, len(v))
	for i, item := range v {
		msgs[i] = item.Field + ": " + item.Message
	}
	return strings.Join(msgs, "; ")
}
