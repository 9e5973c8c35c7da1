package planner

import (
	"os"
	"path/filepath"
	"testing"
)

// TestPlan_UsesDestinationAndBaseName는 목적지 디렉터리와 원본 이름으로 .jpg 경로를 만드는지 검증합니다.
func TestPlan_UsesDestinationAndBaseName(t *testing.T) {
	p := New("/previews/")

	task, err := p.Plan("/samples/nikon_d850_01.nef")
	if err != nil {
		t.Fatalf("unexpected plan error: %v", err)
	}

	if task.DestPath != filepath.Join("/previews", "nikon_d850_01.jpg") {
		t.Fatalf("unexpected dest path: %s", task.DestPath)
	}
	if task.Source.Dir != "/samples" || task.Source.Name != "nikon_d850_01" || task.Source.Ext != ".nef" {
		t.Fatalf("unexpected source descriptor: %+v", task.Source)
	}
	if task.Source.Path() != "/samples/nikon_d850_01.nef" {
		t.Fatalf("unexpected source path: %s", task.Source.Path())
	}
}

// TestDescribe_ResolvesRelativePaths는 상대 경로를 작업 디렉터리 기준 절대 경로로 바꾸는지 검증합니다.
func TestDescribe_ResolvesRelativePaths(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working dir: %v", err)
	}

	desc, err := Describe("dummyFile.nef")
	if err != nil {
		t.Fatalf("unexpected describe error: %v", err)
	}
	if desc.Path() != filepath.Join(wd, "dummyFile.nef") {
		t.Fatalf("unexpected resolved path: %s", desc.Path())
	}
}

// TestDescribe_HandlesFilesWithoutExtension은 확장자 없는 파일도 처리하는지 검증합니다.
func TestDescribe_HandlesFilesWithoutExtension(t *testing.T) {
	desc, err := Describe("/raw/IMG_0001")
	if err != nil {
		t.Fatalf("unexpected describe error: %v", err)
	}
	if desc.Name != "IMG_0001" || desc.Ext != "" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}

	task, _ := New("/out").Plan("/raw/IMG_0001")
	if task.DestPath != "/out/IMG_0001.jpg" {
		t.Fatalf("unexpected dest path: %s", task.DestPath)
	}
}
