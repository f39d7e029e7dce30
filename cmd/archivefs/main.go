package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"archivefs/internal/archive"
	"archivefs/internal/config"
	"archivefs/internal/fs"
	"archivefs/internal/index"
	"archivefs/internal/logging"

	"bazil.org/fuse"
	"github.com/pkg/errors"
)

const version = "0.3.0"

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitBadArgs
	exitHelp
	exitUsage
	exitArchive
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archivefs: %v\n", err)
		config.Usage(os.Stderr, config.NewFlagSet())
		return exitBadArgs
	}
	if cfg.Help {
		config.Usage(os.Stderr, config.NewFlagSet())
		return exitHelp
	}
	if cfg.Version {
		fmt.Fprintf(os.Stderr, "archivefs version: %s\nformats: %s\n", version, strings.Join(archive.Formats(), ", "))
		return exitOK
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrUsage) {
			config.Usage(os.Stderr, config.NewFlagSet())
			return exitUsage
		}
		fmt.Fprintf(os.Stderr, "archivefs: %v\n", err)
		return exitBadArgs
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Syslog: cfg.Syslog})
	if err != nil {
		fmt.Fprintf(os.Stderr, "archivefs: %v\n", err)
		return exitFailure
	}
	if cfg.Debug {
		fuse.Debug = log.FuseDebug()
	}

	log.Info("Starting archivefs %s...", version)
	log.Debug("Log level: %s", log.Level())
	log.Debug("Archive: %s", cfg.Archive)
	log.Debug("Mount point: %s", cfg.MountPoint)

	archivePath := filepath.Clean(cfg.Archive)
	mountPoint := filepath.Clean(cfg.MountPoint)

	info, err := os.Stat(archivePath)
	if err != nil {
		log.Error("Cannot access archive: %v", err)
		return exitArchive
	}

	arc, err := archive.Open(archivePath, log)
	if err != nil {
		log.Error("%v", err)
		return exitArchive
	}
	defer arc.Close()

	entries, err := arc.Entries()
	if err != nil {
		log.Error("Failed to list %s: %v", archivePath, err)
		return exitArchive
	}

	// Indexing a large archive can take a while; allow it to be interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ix, _, err := index.Build(ctx, entries, index.BuildOptions{
		Logger:           log,
		DefaultTime:      info.ModTime(),
		StrictDuplicates: cfg.StrictDuplicates,
	})
	stop()
	if err != nil {
		log.Error("Failed to index %s: %v", archivePath, err)
		return exitArchive
	}
	defer func() {
		if n := ix.Close(); n > 0 {
			log.Debug("Released %d open buffers", n)
		}
	}()

	if cfg.AutoMount {
		created, err := ensureMountPoint(mountPoint)
		if err != nil {
			log.Error("%v", err)
			return exitFailure
		}
		if created {
			defer func() {
				if err := os.Remove(mountPoint); err != nil {
					log.Warn("Failed to remove mount point %s: %v", mountPoint, err)
				}
			}()
		}
	}

	uid, gid := cfg.Owner()
	afs, err := fs.New(ix, arc, fs.Options{
		Logger:     log,
		Uid:        uid,
		Gid:        gid,
		MaxBuffer:  cfg.MaxBufferBytes,
		FSName:     archivePath,
		AllowOther: cfg.AllowOther,
	})
	if err != nil {
		log.Error("Failed to create filesystem: %v", err)
		return exitFailure
	}
	defer afs.Close()

	log.Debug("Setting up signal handlers...")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := afs.Mount(mountPoint); err != nil {
		log.Error("%v", err)
		return exitFailure
	}

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		log.Info("Received signal %v", sig)
		if err := afs.Unmount(mountPoint); err != nil {
			log.Error("Unmount error: %v", err)
		}
	}()

	log.Info("Filesystem mounted and ready")
	if err := afs.Wait(); err != nil {
		return exitFailure
	}
	log.Info("Clean shutdown complete")
	return exitOK
}

// ensureMountPoint creates dir if it does not exist and reports whether it
// did.
func ensureMountPoint(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return false, errors.Wrapf(err, "failed to create mount point %s", dir)
	}
	return true, nil
}
