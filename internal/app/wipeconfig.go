package app

import (
	"errors"
	"fmt"
	"strings"

	"lethe_console/internal/api"
)

// WipeMode режим затирания
type WipeMode struct {
	ID          string `json:"id"`
	Passes      int    `json:"passes"`
	Description string `json:"description"`
	Speed       string `json:"speed"`
}

var wipeModes = []WipeMode{
	{ID: "single", Passes: 1, Description: "Quick single pass overwrite", Speed: "Fast"},
	{ID: "3pass", Passes: 3, Description: "DoD 5220.22-M standard", Speed: "Medium"},
	{ID: "7pass", Passes: 7, Description: "NIST 800-88 compliant", Speed: "Slow"},
}

// Ciphers поддерживаемые алгоритмы шифрования
var Ciphers = []string{"AES", "Serpent", "Twofish"}

const (
	DefaultWipeMode = "3pass"
	DefaultCipher   = "AES"
)

var ErrInvalidConfig = errors.New("invalid wipe configuration")

// WipeModes список режимов затирания
func WipeModes() []WipeMode {
	out := make([]WipeMode, len(wipeModes))
	copy(out, wipeModes)
	return out
}

// LookupWipeMode ищет режим по идентификатору
func LookupWipeMode(id string) (WipeMode, bool) {
	for _, m := range wipeModes {
		if m.ID == id {
			return m, true
		}
	}
	return WipeMode{}, false
}

// WipeConfig параметры start команды из окна настройки
type WipeConfig struct {
	DriveID              string   `json:"driveId"`
	WipeEnabled          bool     `json:"wipeEnabled"`
	WipeMode             string   `json:"wipeMode"`
	EncryptionEnabled    bool     `json:"encryptionEnabled"`
	EncryptionAlgorithms []string `json:"encryptionAlgorithms"`
}

// DefaultWipeConfig значения окна настройки по умолчанию
func DefaultWipeConfig(drive string) WipeConfig {
	return WipeConfig{
		DriveID:              drive,
		WipeEnabled:          true,
		WipeMode:             DefaultWipeMode,
		EncryptionEnabled:    true,
		EncryptionAlgorithms: []string{DefaultCipher},
	}
}

// Normalize приводит регистр алгоритмов к каноническому и убирает повторы
func (c WipeConfig) Normalize() WipeConfig {
	c.DriveID = strings.TrimSpace(c.DriveID)
	c.WipeMode = strings.ToLower(strings.TrimSpace(c.WipeMode))

	seen := make(map[string]bool)
	var algs []string
	for _, a := range c.EncryptionAlgorithms {
		name := canonicalCipher(a)
		if name == "" {
			// неизвестное имя остаётся, чтобы Validate его отклонил
			name = strings.TrimSpace(a)
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		algs = append(algs, name)
	}
	c.EncryptionAlgorithms = algs
	return c
}

// Validate повторяет правила кнопки запуска: диск выбран, включено затирание
// или шифрование, для шифрования выбран хотя бы один алгоритм
func (c WipeConfig) Validate() error {
	if c.DriveID == "" {
		return fmt.Errorf("%w: drive is required", ErrInvalidConfig)
	}
	if !c.WipeEnabled && !c.EncryptionEnabled {
		return fmt.Errorf("%w: enable wipe or encryption", ErrInvalidConfig)
	}
	if c.WipeEnabled {
		if _, ok := LookupWipeMode(c.WipeMode); !ok {
			return fmt.Errorf("%w: unknown wipe mode %q", ErrInvalidConfig, c.WipeMode)
		}
	}
	if c.EncryptionEnabled {
		if len(c.EncryptionAlgorithms) == 0 {
			return fmt.Errorf("%w: select at least one encryption algorithm", ErrInvalidConfig)
		}
		for _, a := range c.EncryptionAlgorithms {
			if canonicalCipher(a) == "" {
				return fmt.Errorf("%w: unknown encryption algorithm %q", ErrInvalidConfig, a)
			}
		}
	}
	return nil
}

// WipeRequest тело /wipe/start
func (c WipeConfig) WipeRequest() api.WipeRequest {
	return api.WipeRequest{Disk: c.DriveID, WipeMode: c.WipeMode}
}

// EncryptRequest тело /encrypt/start
func (c WipeConfig) EncryptRequest() api.EncryptRequest {
	req := api.EncryptRequest{
		Drive:   c.DriveID,
		Encrypt: true,
		Ciphers: append([]string(nil), c.EncryptionAlgorithms...),
		Wipe:    c.WipeEnabled,
		Disk:    c.DriveID,
	}
	if c.WipeEnabled {
		req.WipeMode = c.WipeMode
	}
	return req
}

func canonicalCipher(name string) string {
	for _, c := range Ciphers {
		if strings.EqualFold(c, strings.TrimSpace(name)) {
			return c
		}
	}
	return ""
}
