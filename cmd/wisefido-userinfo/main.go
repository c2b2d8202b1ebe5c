package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wisefido-heartbeat/internal/common/logger"
	"wisefido-heartbeat/internal/users"

	"go.uber.org/zap"
)

func main() {
	count := flag.Int("count", 100, "生成的用户数量")
	format := flag.String("format", "csv", "输出格式：csv, json, json-id, xlsx")
	output := flag.String("output", "", "输出文件（默认 user_info.<ext>）")
	seed := flag.Int64("seed", 0, "随机种子（0 表示按时间）")
	logLevel := flag.String("log-level", "info", "日志级别")
	flag.Parse()

	log, err := logger.NewLogger(*logLevel, "console", "wisefido-userinfo")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	write, ext, err := writerFor(*format)
	if err != nil {
		log.Fatal("Invalid format", zap.String("format", *format), zap.Error(err))
	}
	if *count <= 0 {
		log.Fatal("Count must be positive", zap.Int("count", *count))
	}

	path := *output
	if path == "" {
		path = "user_info" + ext
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("Failed to create output directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	records := users.Synthesize(*count, rand.New(rand.NewSource(s)))

	f, err := os.Create(path)
	if err != nil {
		log.Fatal("Failed to create output file", zap.String("path", path), zap.Error(err))
	}
	bw := bufio.NewWriter(f)
	if err := write(bw, records); err != nil {
		f.Close()
		log.Fatal("Failed to write user info", zap.String("path", path), zap.Error(err))
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		log.Fatal("Failed to flush user info", zap.String("path", path), zap.Error(err))
	}
	if err := f.Close(); err != nil {
		log.Fatal("Failed to close output file", zap.String("path", path), zap.Error(err))
	}

	log.Info("User info generated",
		zap.String("path", path),
		zap.String("format", *format),
		zap.Int("count", len(records)),
		zap.Int64("seed", s),
	)
}

func writerFor(format string) (func(io.Writer, []users.Record) error, string, error) {
	switch strings.ToLower(format) {
	case "csv":
		return users.WriteCSV, ".csv", nil
	case "json":
		return users.WriteJSON, ".json", nil
	case "json-id":
		return users.WriteJSONByID, ".json", nil
	case "xlsx":
		return users.WriteXLSX, ".xlsx", nil
	default:
		return nil, "", fmt.Errorf("unsupported format %q", format)
	}
}
