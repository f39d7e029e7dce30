package fs

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"archivefs/internal/archive"
	"archivefs/internal/archive/archivetest"
	"archivefs/internal/filetime"
	"archivefs/internal/index"

	"bazil.org/fuse"
)

var (
	testTime    = time.Date(2022, time.August, 1, 10, 0, 0, 0, time.UTC)
	archiveTime = time.Date(2021, time.May, 5, 5, 5, 5, 500000000, time.UTC)
)

const (
	testUID = 1234
	testGID = 5678
)

func testFiles() []archivetest.File {
	mtime := filetime.FromTime(archiveTime)
	return []archivetest.File{
		{Path: "file1.txt", Content: []byte("test file content"), MTime: mtime},
		{Path: "dir1/", Kind: archive.KindDir, MTime: mtime},
		{Path: "dir1/file2.txt", Content: []byte("second file")},
		{Path: "dir1/dir2/file3.txt", Content: []byte("third")},
		{Path: "empty/", Kind: archive.KindDir},
	}
}

func setupTestFS(t *testing.T, files ...archivetest.File) (*ArchiveFS, *archivetest.Memory, func()) {
	if len(files) == 0 {
		files = testFiles()
	}
	mem := archivetest.New(files...)

	entries, err := mem.Entries()
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}

	ix, _, err := index.Build(context.Background(), entries, index.BuildOptions{DefaultTime: testTime})
	if err != nil {
		t.Fatalf("Failed to build index: %v", err)
	}

	afs, err := New(ix, mem, Options{
		Uid:     testUID,
		Gid:     testGID,
		StatDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to create filesystem: %v", err)
	}

	cleanup := func() {
		ix.Close()
	}
	return afs, mem, cleanup
}

func rootDir(t *testing.T, afs *ArchiveFS) *Dir {
	root, err := afs.Root()
	if err != nil {
		t.Fatalf("Failed to get root: %v", err)
	}
	dir, ok := root.(*Dir)
	if !ok {
		t.Fatal("Root should be a Dir")
	}
	return dir
}

func lookupDir(t *testing.T, d *Dir, name string) *Dir {
	node, err := d.Lookup(context.Background(), name)
	if err != nil {
		t.Fatalf("Failed to lookup %q: %v", name, err)
	}
	dir, ok := node.(*Dir)
	if !ok {
		t.Fatalf("%q should be a Dir, got %T", name, node)
	}
	return dir
}

func TestDirOperations(t *testing.T) {
	afs, _, cleanup := setupTestFS(t)
	defer cleanup()

	ctx := context.Background()

	t.Run("RootDirectory", func(t *testing.T) {
		root := rootDir(t, afs)

		attr := &fuse.Attr{}
		if err := root.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get root attributes: %v", err)
		}
		if attr.Mode != os.ModeDir|0755 {
			t.Errorf("Expected mode %v, got %v", os.ModeDir|0755, attr.Mode)
		}
		// file1.txt, dir1, empty
		if attr.Nlink != 5 {
			t.Errorf("Expected 5 links, got %d", attr.Nlink)
		}
		if attr.Size != 3 {
			t.Errorf("Expected size 3, got %d", attr.Size)
		}
		if attr.Uid != testUID || attr.Gid != testGID {
			t.Errorf("Expected owner %d:%d, got %d:%d", testUID, testGID, attr.Uid, attr.Gid)
		}
		if !attr.Mtime.Equal(testTime) {
			t.Errorf("Expected root mtime %v, got %v", testTime, attr.Mtime)
		}

		entries, err := root.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read root directory: %v", err)
		}

		want := []struct {
			name string
			typ  fuse.DirentType
		}{
			{".", fuse.DT_Dir},
			{"..", fuse.DT_Dir},
			{"dir1", fuse.DT_Dir},
			{"empty", fuse.DT_Dir},
			{"file1.txt", fuse.DT_File},
		}
		if len(entries) != len(want) {
			t.Fatalf("Expected %d entries, got %d: %v", len(want), len(entries), entries)
		}
		for i, w := range want {
			if entries[i].Name != w.name || entries[i].Type != w.typ {
				t.Errorf("Entry %d: expected %s (%v), got %s (%v)", i, w.name, w.typ, entries[i].Name, entries[i].Type)
			}
		}
		if entries[0].Inode != attr.Inode || entries[1].Inode != attr.Inode {
			t.Error("Root . and .. should both point at the root inode")
		}
	})

	t.Run("NestedDirectory", func(t *testing.T) {
		dir1 := lookupDir(t, rootDir(t, afs), "dir1")

		attr := &fuse.Attr{}
		if err := dir1.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get dir1 attributes: %v", err)
		}
		if !attr.Mtime.Equal(archiveTime) {
			t.Errorf("Expected mtime from the archive %v, got %v", archiveTime, attr.Mtime)
		}
		if attr.Nlink != 4 {
			t.Errorf("Expected 4 links, got %d", attr.Nlink)
		}

		dir2 := lookupDir(t, dir1, "dir2")
		entries, err := dir2.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read dir2: %v", err)
		}
		if len(entries) != 3 || entries[2].Name != "file3.txt" {
			t.Errorf("Unexpected dir2 listing: %v", entries)
		}
		if entries[1].Inode != attr.Inode {
			t.Error("dir2/.. should point at dir1")
		}
	})

	t.Run("EmptyDirectory", func(t *testing.T) {
		empty := lookupDir(t, rootDir(t, afs), "empty")
		entries, err := empty.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read empty directory: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("Expected only . and .., got %v", entries)
		}
	})

	t.Run("LookupMissing", func(t *testing.T) {
		_, err := rootDir(t, afs).Lookup(ctx, "nonexistent")
		if err != fuse.Errno(syscall.ENOENT) {
			t.Errorf("Expected ENOENT, got %v", err)
		}
	})

	t.Run("LookupFile", func(t *testing.T) {
		node, err := rootDir(t, afs).Lookup(ctx, "file1.txt")
		if err != nil {
			t.Fatalf("Failed to lookup file: %v", err)
		}
		if _, ok := node.(*File); !ok {
			t.Errorf("Expected a File, got %T", node)
		}
	})
}

func TestDirMutationsRejected(t *testing.T) {
	afs, _, cleanup := setupTestFS(t)
	defer cleanup()

	ctx := context.Background()
	root := rootDir(t, afs)
	dir1 := lookupDir(t, root, "dir1")

	before, err := root.ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("Failed to read root: %v", err)
	}
	beforeAttr := &fuse.Attr{}
	if err := dir1.Attr(ctx, beforeAttr); err != nil {
		t.Fatalf("Failed to get attributes: %v", err)
	}

	enotsup := fuse.Errno(syscall.ENOTSUP)
	tests := []struct {
		name string
		call func() error
	}{
		{"Mkdir", func() error {
			_, err := root.Mkdir(ctx, &fuse.MkdirRequest{Name: "newdir"})
			return err
		}},
		{"Create", func() error {
			_, _, err := root.Create(ctx, &fuse.CreateRequest{Name: "new.txt"}, &fuse.CreateResponse{})
			return err
		}},
		{"Unlink", func() error {
			return root.Remove(ctx, &fuse.RemoveRequest{Name: "file1.txt"})
		}},
		{"Rmdir", func() error {
			return root.Remove(ctx, &fuse.RemoveRequest{Name: "empty", Dir: true})
		}},
		{"Rename", func() error {
			return root.Rename(ctx, &fuse.RenameRequest{OldName: "dir1", NewName: "moved"}, root)
		}},
		{"Symlink", func() error {
			_, err := root.Symlink(ctx, &fuse.SymlinkRequest{NewName: "link", Target: "file1.txt"})
			return err
		}},
		{"Link", func() error {
			_, err := root.Link(ctx, &fuse.LinkRequest{NewName: "hard"}, dir1)
			return err
		}},
		{"Mknod", func() error {
			_, err := root.Mknod(ctx, &fuse.MknodRequest{Name: "fifo"})
			return err
		}},
		{"Setattr", func() error {
			return dir1.Setattr(ctx, &fuse.SetattrRequest{Mode: 0700, Valid: fuse.SetattrMode}, &fuse.SetattrResponse{})
		}},
		{"Setxattr", func() error {
			return dir1.Setxattr(ctx, &fuse.SetxattrRequest{Name: "user.k", Xattr: []byte("v")})
		}},
		{"Removexattr", func() error {
			return dir1.Removexattr(ctx, &fuse.RemovexattrRequest{Name: "user.k"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != enotsup {
				t.Errorf("Expected ENOTSUP, got %v", err)
			}
		})
	}

	after, err := root.ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("Failed to read root: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("Root listing changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("Entry %d changed: %v -> %v", i, before[i], after[i])
		}
	}

	afterAttr := &fuse.Attr{}
	if err := dir1.Attr(ctx, afterAttr); err != nil {
		t.Fatalf("Failed to get attributes: %v", err)
	}
	if *beforeAttr != *afterAttr {
		t.Errorf("Attributes changed: %+v -> %+v", beforeAttr, afterAttr)
	}
}
