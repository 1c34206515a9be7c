package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// Default models. The summarization model matches the original service, the
// embedding model is the standard 384-dimension sentence transformer.
const (
	DefaultSummarizationModel = "sshleifer/distilbart-cnn-12-6"
	DefaultEmbeddingModel     = "sentence-transformers/all-MiniLM-L6-v2"
)

// prepareModel downloads a model on first use and returns its local path.
// Models already on disk are reused as-is.
func prepareModel(modelName, modelsDir string) (string, error) {
	if modelsDir == "" {
		modelsDir = "./models"
	}
	modelPath := filepath.Join(modelsDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelsDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create model directory: %w", err)
		}
		downloadOptions := hugot.NewDownloadOptions()
		downloadOptions.OnnxFilePath = "onnx/model.onnx"
		downloadedPath, err := hugot.DownloadModel(modelName, modelsDir, downloadOptions)
		if err != nil {
			return "", fmt.Errorf("failed to download model %s: %w", modelName, err)
		}
		modelPath = downloadedPath
	}

	return modelPath, nil
}
