// Package store 房间定义与家具目录的加载、布局编辑的落盘
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hangout/room"
)

// ErrNoRoomData 已保存文件与默认文件都不可用
var ErrNoRoomData = errors.New("no room data available")

// Source 房间数据的来源
type Source string

const (
	SourceSaved   Source = "saved"
	SourceDefault Source = "default"
)

// LoadRooms 先尝试读取已保存的文件，失败则回退到随包附带的默认文件；
// 两者都不可用时返回 ErrNoRoomData，调用方应终止启动。
func LoadRooms(savedPath, defaultPath string) ([]room.Definition, Source, error) {
	defs, savedErr := readRooms(savedPath)
	if savedErr == nil {
		return defs, SourceSaved, nil
	}
	defs, defaultErr := readRooms(defaultPath)
	if defaultErr == nil {
		return defs, SourceDefault, nil
	}
	return nil, "", fmt.Errorf("%w: saved %q: %v; default %q: %v",
		ErrNoRoomData, savedPath, savedErr, defaultPath, defaultErr)
}

func readRooms(path string) ([]room.Definition, error) {
	if path == "" {
		return nil, errors.New("no path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []room.Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return defs, nil
}

// WriteRooms 原子写入：先写临时文件再重命名，避免半截文件
func WriteRooms(path string, defs []room.Definition) error {
	data, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rooms: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming to %s: %w", path, err)
	}
	return nil
}
