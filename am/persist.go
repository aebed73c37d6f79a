package am

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
)

// backupCount is how many rotated copies an overwritten config keeps
const backupCount = 3

// Defaults returns a Config holding only built-in defaults
func Defaults() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return LoadWithViper(v)
}

// WriteStarter writes a config file holding the defaults to path. An
// existing file is only replaced when force is set, after rotating backups.
func WriteStarter(path string, force bool, log *zap.SugaredLogger) error {
	log = logger.OrNop(log).Named("am")

	if _, err := os.Stat(path); err == nil && !force {
		err = errors.Newf("%s already exists", path)
		return errors.WithHint(err, "pass --force to overwrite (the old file is kept as .back1)")
	}

	cfg, err := Defaults()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := createBackup(path, log); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	if w := GetGlobalWatcher(); w != nil {
		w.MarkOwnWrite()
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	log.Infow("wrote starter config", logger.FieldFile, path, logger.FieldSize, len(data))
	return nil
}

func backupPath(configPath string, n int) string {
	return configPath + ".back" + strconv.Itoa(n)
}

// createBackup rotates .back1 .. .back3 and copies the current file to .back1
func createBackup(configPath string, log *zap.SugaredLogger) error {
	log = logger.OrNop(log)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	oldest := backupPath(configPath, backupCount)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		log.Warnw("failed to delete old backup", logger.FieldFile, oldest, logger.FieldError, err)
	}
	for n := backupCount - 1; n >= 1; n-- {
		from := backupPath(configPath, n)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, backupPath(configPath, n+1)); err != nil {
			return errors.Wrapf(err, "failed to rotate %s", filepath.Base(from))
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(backupPath(configPath, 1), content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}
