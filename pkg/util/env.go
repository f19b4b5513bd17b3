package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// LoadEnv 按 .env.<env> 、.env 的顺序加载环境变量文件，已存在的进程环境变量不会被覆盖
func LoadEnv(env string) error {
	files := []string{".env"}
	if env != "" {
		files = append([]string{".env." + env}, files...)
	}

	loaded := 0
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := loadEnvFile(file); err != nil {
			return err
		}
		loaded++
	}
	if loaded == 0 {
		return fmt.Errorf("no env file found for %q: %w", env, os.ErrNotExist)
	}
	return nil
}

func loadEnvFile(file string) error {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

// GetEnv 读取字符串环境变量
func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnvDefault 读取字符串环境变量，为空时返回默认值
func GetEnvDefault(key, def string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return def
}

// GetIntEnv 读取整型环境变量，无法解析时为 0
func GetIntEnv(key string) int64 {
	return cast.ToInt64(GetEnv(key))
}

// GetBoolEnv 读取布尔环境变量，支持 1/true/yes 等写法
func GetBoolEnv(key string) bool {
	v := strings.ToLower(GetEnv(key))
	if v == "yes" || v == "on" {
		return true
	}
	return cast.ToBool(v)
}

// LookupBoolEnv 与 GetBoolEnv 相同，但区分未设置
func LookupBoolEnv(key string) (value bool, ok bool) {
	if GetEnv(key) == "" {
		return false, false
	}
	return GetBoolEnv(key), true
}

// GetDurationEnv 读取时长，支持 "30s" 形式；纯数字按 unit 计
func GetDurationEnv(key string, unit time.Duration) time.Duration {
	raw := GetEnv(key)
	if raw == "" {
		return 0
	}
	if n, err := cast.ToInt64E(raw); err == nil {
		return time.Duration(n) * unit
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return 0
	}
	return d
}

// GetListEnv 读取逗号分隔的列表
func GetListEnv(key string) []string {
	raw := GetEnv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsNotExist 判断 LoadEnv 的错误是否只是缺少文件
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
