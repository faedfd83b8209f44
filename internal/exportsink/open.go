package exportsink

import (
	"fmt"
	"log"

	"crewsheet/internal/config"
)

// Open builds the sinks enabled by cfg. It returns nil when none are
// configured; exports are then only returned to the caller.
func Open(savePath string, cfg config.ExportConfig) (Sink, error) {
	var sinks Multi
	if savePath != "" {
		sinks = append(sinks, NewFile(savePath))
		log.Printf("export sink: file save_path=%s", savePath)
	}
	if cfg.S3.CanUse() {
		s3, err := NewS3(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize export s3 sink: %w", err)
		}
		sinks = append(sinks, s3)
		log.Printf("export sink: s3 bucket=%s endpoint=%s", cfg.S3.Bucket, cfg.S3.Endpoint)
	}
	if cfg.PostgresDSN != "" {
		pg, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
		log.Printf("export sink: postgres")
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}
