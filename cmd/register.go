package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/upashthiti/upashthiti/internal/config"
	"github.com/upashthiti/upashthiti/internal/constants"
)

var registerCmd = &cobra.Command{
	Use:   "register [name] [photo...]",
	Short: "Register students from face photos",
	Long: `Register a student from one or more face photos. When several photos
are given the stored embedding is the average over the largest face found
in each photo, which makes recognition more robust to pose and lighting.

Batch mode enrolls a whole directory tree at once: every subdirectory of
--dir is treated as one student named after the directory, containing
that student's photos.

Examples:
  # Register one student from two photos
  upashthiti register "Asha Sharma" asha1.jpg asha2.jpg

  # Register with an explicit student id
  upashthiti register "Asha Sharma" asha.jpg --student-id 2024-CS-017

  # Enroll photos/<name>/*.jpg for every student directory
  upashthiti register --dir photos --concurrency 4`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("student-id", "", "Student identifier (generated when empty)")
	registerCmd.Flags().String("dir", "", "Batch mode: directory with one subdirectory per student")
	registerCmd.Flags().Int("concurrency", constants.EnrollWorkerPoolSize, "Number of parallel workers in batch mode")
}

// imageExtensions are the photo files picked up in batch mode.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true,
}

func readPhotos(paths []string) ([][]byte, error) {
	images := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading photo %s: %w", path, err)
		}
		images = append(images, data)
	}
	return images, nil
}

// listStudentPhotos collects image files per student subdirectory.
func listStudentPhotos(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	photos := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		files, err := os.ReadDir(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", filepath.Join(dir, name), err)
		}
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			photos[name] = append(photos[name], filepath.Join(dir, name, f.Name()))
		}
	}
	return photos, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	if dir != "" {
		return runRegisterBatch(cmd, dir)
	}

	if len(args) < 2 {
		return fmt.Errorf("usage: register <name> <photo>... (or --dir for batch mode)")
	}
	name, paths := args[0], args[1:]

	ctx := context.Background()
	cfg := config.Load()
	svc, _, _ := buildService(ctx, cfg)

	images, err := readPhotos(paths)
	if err != nil {
		return err
	}

	result, err := svc.Enroll(ctx, name, images, mustGetString(cmd, "student-id"))
	if err != nil {
		return fmt.Errorf("registering %s: %w", name, err)
	}

	fmt.Printf("Registered %s (id %s) from %d photo(s), %d face(s) detected\n",
		name, result.Record.StudentID, result.PhotosUsed, result.FacesDetected)
	return nil
}

func runRegisterBatch(cmd *cobra.Command, dir string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	ctx := context.Background()
	cfg := config.Load()
	svc, reg, _ := buildService(ctx, cfg)

	photos, err := listStudentPhotos(dir)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return fmt.Errorf("no student directories with photos found in %s", dir)
	}

	names := make([]string, 0, len(photos))
	for name := range photos {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Enrolling %d student(s) from %s\n\n", len(names), dir)

	bar := progressbar.NewOptions(len(names),
		progressbar.OptionSetDescription("Enrolling students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	type failure struct {
		name string
		err  error
	}

	var successCount int
	var failures []failure
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(name string, paths []string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			enrollOne := func() error {
				images, err := readPhotos(paths)
				if err != nil {
					return err
				}
				_, err = svc.Enroll(ctx, name, images, "")
				return err
			}

			err := enrollOne()
			mu.Lock()
			if err != nil {
				failures = append(failures, failure{name: name, err: err})
			} else {
				successCount++
			}
			mu.Unlock()
			bar.Add(1)
		}(name, photos[name])
	}

	wg.Wait()
	bar.Finish()

	fmt.Printf("\n\nEnrolled %d/%d student(s), registry now holds %d\n",
		successCount, len(names), reg.Count())
	for _, f := range failures {
		fmt.Printf("  failed: %s: %v\n", f.name, f.err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d student(s) failed to enroll", len(failures))
	}
	return nil
}
