package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/ini.v1"
)

const defaultConfigTemplate = "PORT=3000\nSQLITE_PATH=data/chunkvault.db\nSTORAGE_ROOT=data/nodes\nSTORAGE_NODES=node-1@local\nJWT_SECRET=%s\n"

// InitConfig loads the on-disk config file and applies it over the defaults.
// Environment variables read in constants.go keep precedence over the file.
func InitConfig() error {
	return loadConfigFile()
}

func loadConfigFile() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", "chunkvault", "config.ini")
	if err := ensureConfigFile(configPath); err != nil {
		return err
	}

	configMap, err := parseIniConfig(configPath)
	if err != nil {
		return err
	}

	if err := applyConfigMap(configMap); err != nil {
		return fmt.Errorf("apply config file %s: %w", configPath, err)
	}

	return nil
}

func ensureConfigFile(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", configDir, err)
	}

	configFile, err := os.OpenFile(configPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create config file %s: %w", configPath, err)
	}
	defer configFile.Close()

	if _, err := configFile.WriteString(fmt.Sprintf(defaultConfigTemplate, uuid.New().String())); err != nil {
		return fmt.Errorf("write default config file %s: %w", configPath, err)
	}

	return nil
}

func parseIniConfig(path string) (map[string]string, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parse ini config %s: %w", path, err)
	}

	configMap := make(map[string]string)
	for _, section := range cfg.Sections() {
		for _, key := range section.Keys() {
			configKey := strings.ToUpper(strings.TrimSpace(key.Name()))
			if configKey == "" {
				continue
			}
			configMap[configKey] = strings.TrimSpace(key.Value())
		}
	}

	return configMap, nil
}

func applyConfigMap(configMap map[string]string) error {
	if configValue, ok := configMap["SQLITE_PATH"]; ok && configValue != "" {
		SQLitePath = configValue
	}

	if configValue, ok := configMap["JWT_SECRET"]; ok && configValue != "" && JWTSecret == "" {
		JWTSecret = configValue
	}

	if configValue, ok := configMap["REDIS_CONN_STRING"]; ok && configValue != "" && RedisConnString == "" {
		RedisConnString = configValue
	}

	if configValue, ok := configMap["STORAGE_ROOT"]; ok && configValue != "" {
		StorageRoot = configValue
	}

	if configValue, ok := configMap["STORAGE_NODES"]; ok && configValue != "" {
		StorageNodes = configValue
	}

	if configValue, ok := configMap["PORT"]; ok && configValue != "" {
		portInt, err := strconv.Atoi(configValue)
		if err != nil {
			return fmt.Errorf("invalid value for PORT: %w", err)
		}
		*Port = portInt
	}

	if configValue, ok := configMap["CHUNK_SIZE"]; ok && configValue != "" {
		sizeInt, err := strconv.ParseInt(configValue, 10, 64)
		if err != nil || sizeInt <= 0 {
			return fmt.Errorf("invalid value for CHUNK_SIZE: %q", configValue)
		}
		ChunkSize = sizeInt
	}

	if configValue, ok := configMap["TOKEN_TTL_MINUTES"]; ok && configValue != "" {
		ttlInt, err := strconv.Atoi(configValue)
		if err != nil || ttlInt <= 0 {
			return fmt.Errorf("invalid value for TOKEN_TTL_MINUTES: %q", configValue)
		}
		TokenTTL = time.Duration(ttlInt) * time.Minute
	}

	return nil
}
