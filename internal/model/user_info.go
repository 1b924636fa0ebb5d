// Package model 定义数据实体模型
// 本文件定义用户信息模型，包含用户基本资料和认证信息
package model

import (
	"golang.org/x/crypto/bcrypt" // 密码哈希库
	"gorm.io/gorm"
)

// UserInfo 用户信息模型
// 对应数据库 user_info 表
type UserInfo struct {
	gorm.Model // 内嵌 GORM 模型，包含 ID、CreatedAt、UpdatedAt、DeletedAt

	// Uuid 用户唯一标识，同时作为 JWT 中的 user_id 以及会话的所有者
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(36);comment:用户唯一id"`

	// Username 登录名
	Username string `gorm:"column:username;uniqueIndex;type:varchar(32);not null;comment:用户名"`

	// Email 邮箱地址
	Email string `gorm:"column:email;type:varchar(64);comment:邮箱"`

	// Password 密码（已哈希）
	Password string `gorm:"column:password;type:varchar(100);not null;comment:密码"`

	// Status 账号状态 0=正常, 1=禁用
	Status int8 `gorm:"column:status;not null;default:0;comment:状态，0.正常，1.禁用"`

	// RawPassword 明文密码（不存入数据库）
	// 在 BeforeSave 中加密
	RawPassword string `gorm:"-" json:"-"`
}

// TableName 指定表名
func (UserInfo) TableName() string {
	return "user_info"
}

// BeforeSave GORM Hook：在创建和更新前自动调用
// 将 RawPassword 明文密码加密后存入 Password 字段
func (u *UserInfo) BeforeSave(tx *gorm.DB) error {
	return u.HashPassword()
}

// HashPassword 若设置了明文密码则生成 bcrypt 哈希并清空明文
func (u *UserInfo) HashPassword() error {
	if u.RawPassword == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.RawPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	u.RawPassword = ""
	return nil
}

// CheckPassword 校验密码是否正确
func (u *UserInfo) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plaintext)) == nil
}
