package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/raymondhs/char-rnn/internal/api"
)

const envModelsDir = "TRUECASE_MODELS_DIR"

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

func resolveCheckpointPath(checkpointFlag, modelsPath string, stdin io.Reader, stderr io.Writer) (string, error) {
	checkpointFlag = strings.TrimSpace(checkpointFlag)
	if checkpointFlag != "" {
		return filepath.Clean(checkpointFlag), nil
	}

	modelsDir := strings.TrimSpace(modelsPath)
	if modelsDir == "" {
		modelsDir = strings.TrimSpace(os.Getenv(envModelsDir))
	}
	if modelsDir == "" {
		return "", fmt.Errorf("--checkpoint or --models-path is required unless %s is set", envModelsDir)
	}

	models, err := discoverCheckpoints(modelsDir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", fmt.Errorf("no .safetensors checkpoints found in %s", modelsDir)
	case 1:
		_, _ = fmt.Fprintf(stderr, "truecase: using checkpoint %s\n", models[0])
		return models[0], nil
	default:
		if !stdinIsTTY() {
			return "", fmt.Errorf(
				"multiple checkpoints found in %s but stdin is not interactive; set --checkpoint",
				modelsDir,
			)
		}
		return selectCheckpointInteractively(modelsDir, models, stdin, stderr)
	}
}

func discoverCheckpoints(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("models directory is empty")
	}
	models, err := api.DiscoverModels(dir)
	if err != nil {
		return nil, err
	}
	sort.Strings(models)
	return models, nil
}

func selectCheckpointInteractively(modelsDir string, models []string, stdin io.Reader, stderr io.Writer) (string, error) {
	if len(models) == 0 {
		return "", fmt.Errorf("no checkpoints available in %s", modelsDir)
	}

	_, _ = fmt.Fprintf(stderr, "truecase: select a checkpoint from %s\n", modelsDir)
	for i, m := range models {
		_, _ = fmt.Fprintf(stderr, "%d. %s\n", i+1, checkpointDisplayName(modelsDir, m))
	}

	reader := bufio.NewReader(stdin)
	for {
		_, _ = fmt.Fprintf(stderr, "truecase: enter selection [1-%d]: ", len(models))
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no selection provided on stdin; set --checkpoint")
			}
			continue
		}

		idx, convErr := strconv.Atoi(line)
		if convErr != nil || idx < 1 || idx > len(models) {
			_, _ = fmt.Fprintf(stderr, "truecase: invalid selection %q\n", line)
			if errors.Is(err, io.EOF) {
				return "", errors.New("invalid selection provided on stdin; set --checkpoint")
			}
			continue
		}
		return models[idx-1], nil
	}
}

func checkpointDisplayName(modelsDir, path string) string {
	rel, err := filepath.Rel(modelsDir, path)
	if err != nil || rel == "." {
		return filepath.Base(path)
	}
	return rel
}

func isTTY() bool {
	st, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (st.Mode() & os.ModeCharDevice) != 0
}
