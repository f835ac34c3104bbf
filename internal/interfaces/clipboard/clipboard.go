package clipboard

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable 系统没有可用的剪贴板程序（xclip/xsel/wl-clipboard 等）
var ErrUnavailable = errors.New("clipboard unavailable")

// Backend 剪贴板读写
type Backend interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemBackend struct{}

func (systemBackend) ReadAll() (string, error) { return clipboard.ReadAll() }

func (systemBackend) WriteAll(text string) error { return clipboard.WriteAll(text) }

type Clipboard struct {
	backend   Backend
	available bool
}

// New 使用系统剪贴板
func New() *Clipboard {
	return &Clipboard{backend: systemBackend{}, available: !clipboard.Unsupported}
}

// NewWithBackend 测试或自定义后端
func NewWithBackend(b Backend) *Clipboard {
	return &Clipboard{backend: b, available: b != nil}
}

// Copy 写入机器可解析的值（非格式化显示文本）
func (c *Clipboard) Copy(value string) error {
	if !c.available {
		return ErrUnavailable
	}
	if err := c.backend.WriteAll(value); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	log.Debug().Str("value", value).Msg("copied to clipboard")
	return nil
}

// FormatPrice 成交价的纯文本形式，e.g. 15234567 或 15234567.5
func FormatPrice(ltp float64) string {
	return strconv.FormatFloat(ltp, 'f', -1, 64)
}

// CopyPrice 复制当前成交价，返回写入的文本
func (c *Clipboard) CopyPrice(ltp float64) (string, error) {
	if !(ltp > 0) {
		return "", ErrNotNumeric
	}
	value := FormatPrice(ltp)
	if err := c.Copy(value); err != nil {
		return "", err
	}
	return value, nil
}

func (c *Clipboard) read() (string, error) {
	if !c.available {
		return "", ErrUnavailable
	}
	text, err := c.backend.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// PasteInteger 读取并按整数字段清洗（日元金额）
func (c *Clipboard) PasteInteger() (string, error) {
	text, err := c.read()
	if err != nil {
		return "", err
	}
	return SanitizeInteger(text)
}

// PasteDecimal 读取并按小数字段清洗（BTC 数量）
func (c *Clipboard) PasteDecimal() (string, error) {
	text, err := c.read()
	if err != nil {
		return "", err
	}
	return SanitizeDecimal(text)
}
