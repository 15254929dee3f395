package util

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	log "github.com/sirupsen/logrus"
)

// WriteBytes writes bs to file creating parent directories if required.
// The content is written to a temporary file in the same directory first and then renamed over the target,
// so readers either see the previous document or the new one.
func WriteBytes(ctx context.Context, file string, bs []byte) error {
	configDir, configFileName, err := prepareFileDir(file)
	if err != nil {
		return fmt.Errorf("prepare file dir: %w", err)
	}

	return writeBytes(ctx, file, configDir, configFileName, bs)
}

func writeBytes(ctx context.Context, file string, configDir string, configFileName string, bs []byte) error {
	if ctx.Err() != nil {
		return fmt.Errorf("write bytes start: %w", ctx.Err())
	}

	tempFile, err := os.CreateTemp(configDir, ".*"+configFileName)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	tempFileName := tempFile.Name()

	if err := os.Chmod(tempFileName, 0o644); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFileName)
		return fmt.Errorf("set temp file permissions: %w", err)
	}

	if _, err = tempFile.Write(bs); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFileName)
		return fmt.Errorf("write: %w", err)
	}

	if err = tempFile.Sync(); err != nil {
		log.Warnf("failed to sync %s: %v", tempFileName, err)
	}

	if err = tempFile.Close(); err != nil {
		_ = os.Remove(tempFileName)
		return fmt.Errorf("close %s: %w", tempFileName, err)
	}

	defer func() {
		if _, statErr := os.Stat(tempFileName); statErr == nil {
			if rmErr := os.Remove(tempFileName); rmErr != nil {
				log.Warnf("failed to remove temp file %s: %v", tempFileName, rmErr)
			}
		}
	}()

	if ctx.Err() != nil {
		return fmt.Errorf("after temp file: %w", ctx.Err())
	}

	if err = os.Rename(tempFileName, file); err != nil {
		return fmt.Errorf("move %s to %s: %w", tempFileName, file, err)
	}

	return nil
}

// ReadJsonWithEnvSub reads JSON config file and maps to a provided interface with environment variable substitution.
// Variables are referenced as {{ .NAME }}.
func ReadJsonWithEnvSub(file string, res interface{}) (interface{}, error) {
	const maxConfigFileSize = 1024 * 1024

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bs, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(bs) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: maximum size is %d bytes", maxConfigFileSize)
	}

	t, err := template.New("").Option("missingkey=zero").Parse(string(bs))
	if err != nil {
		return nil, fmt.Errorf("error parsing template: %v", err)
	}

	var output bytes.Buffer
	if err = t.Execute(&output, getEnvMap()); err != nil {
		return nil, fmt.Errorf("error executing template: %v", err)
	}

	if err = json.Unmarshal(output.Bytes(), &res); err != nil {
		return nil, fmt.Errorf("failed parsing Json file after template was executed, err: %v", err)
	}

	return res, nil
}

// RemoveFile removes the specified file if it exists
func RemoveFile(file string) error {
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := os.Remove(file); err != nil {
		return fmt.Errorf("failed to remove file %s: %w", file, err)
	}

	return nil
}

// getEnvMap converts the output of os.Environ() to a map.
func getEnvMap() map[string]string {
	envMap := make(map[string]string)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && parts[0] != "" {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}

func prepareFileDir(file string) (string, string, error) {
	dir, fileName := filepath.Split(file)
	if dir == "" {
		return filepath.Dir(file), fileName, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	return dir, fileName, nil
}
