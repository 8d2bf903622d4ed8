// Package prompts 提供基于 GORM 的提示词库。
//
// 条目按名称唯一，Add 遇到同名条目返回 ErrDuplicateName 而不是覆盖。
// 存储后端由 internal/database 打开，默认 sqlite，亦支持 postgres 与 mysql。
package prompts
