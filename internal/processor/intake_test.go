package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"resumease-go/internal/constants"
	"resumease-go/internal/parser"
	"resumease-go/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) UploadResumeFile(ctx context.Context, resumeID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	path, _, err := f.UploadResumeFileStreaming(ctx, resumeID, fileExt, reader, fileSize)
	return path, err
}

func (f *fakeObjectStore) UploadResumeFileStreaming(_ context.Context, resumeID, fileExt string, reader io.Reader, _ int64) (string, string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", "", err
	}
	key := "resumes/" + resumeID + fileExt
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return key, "", nil
}

func (f *fakeObjectStore) UploadParsedText(_ context.Context, resumeID string, text string) (string, error) {
	key := "parsed/" + resumeID + ".txt"
	f.mu.Lock()
	f.objects[key] = []byte(text)
	f.mu.Unlock()
	return key, nil
}

func (f *fakeObjectStore) GetResumeFile(_ context.Context, objectName string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("对象不存在: %s", objectName)
	}
	return data, nil
}

func (f *fakeObjectStore) GetParsedText(ctx context.Context, objectName string) (string, error) {
	data, err := f.GetResumeFile(ctx, objectName)
	return string(data), err
}

func (f *fakeObjectStore) GetPresignedURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "http://fake/" + objectName, nil
}

func (f *fakeObjectStore) DeleteFile(_ context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	md5s map[string]bool
	kv   map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{md5s: make(map[string]bool), kv: make(map[string][]byte)}
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.kv[key] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	data, ok := f.kv[key]
	f.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeCache) AddRawFileMD5(_ context.Context, md5Hex string) error {
	f.mu.Lock()
	f.md5s[md5Hex] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeCache) CheckRawFileMD5Exists(_ context.Context, md5Hex string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.md5s[md5Hex], nil
}

// buildResumeDOCX 在内存中构造一个最小可用的DOCX简历
func buildResumeDOCX(t *testing.T, lines []string) []byte {
	t.Helper()
	var body bytes.Buffer
	for _, line := range lines {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", line)
	}
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>` + body.String() + `</w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(docXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestIntake(t *testing.T, meta *fakeMeta, objects *fakeObjectStore, cache *fakeCache, events *fakeEvents) *IntakeService {
	t.Helper()
	pipeline, err := parser.NewParsingPipeline(context.Background(), parser.DefaultVocabulary())
	require.NoError(t, err)
	nop := zerolog.Nop()
	svc := &IntakeService{
		meta:     meta,
		pipeline: pipeline,
		logger:   &nop,
		now:      func() time.Time { return testBase },
	}
	if objects != nil {
		svc.objects = objects
	}
	if cache != nil {
		svc.cache = cache
	}
	if events != nil {
		svc.events = events
	}
	return svc
}

func TestProcessResumeUpload_Success(t *testing.T) {
	meta := newFakeMeta()
	objects := newFakeObjectStore()
	cache := newFakeCache()
	events := &fakeEvents{}
	svc := newTestIntake(t, meta, objects, cache, events)

	data := buildResumeDOCX(t, []string{
		"Jane Doe",
		"github.com/janedoe",
		"Skills",
		"Python, Go, Docker",
	})

	result, err := svc.ProcessResumeUpload(context.Background(), data, "jane_resume.docx")
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, constants.ResumeStatusParsed, result.Status)
	assert.Equal(t, 3, result.SkillCount)
	assert.Equal(t, "https://github.com/janedoe", result.Links.GitHub)

	// 数据库记录翻转到PARSED，原件和解析文本都进了对象存储
	resume := meta.resumes[result.ResumeID]
	require.NotNil(t, resume)
	assert.Equal(t, constants.ResumeStatusParsed, resume.Status)
	assert.Contains(t, objects.objects, "resumes/"+result.ResumeID+".docx")
	assert.Contains(t, objects.objects, "parsed/"+result.ResumeID+".txt")

	updates := meta.fieldUpdates[result.ResumeID]
	require.NotNil(t, updates)
	assert.Contains(t, updates["parsed_text"], "Jane Doe")

	// MD5进了去重集合，解析完成事件已发布
	exists, err := cache.CheckRawFileMD5Exists(context.Background(), resume.FileMD5)
	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, events.parsed, 1)
	assert.Equal(t, result.ResumeID, events.parsed[0].ResumeID)
	assert.True(t, events.parsed[0].HasGithub)
	assert.Equal(t, 3, events.parsed[0].SkillCount)
}

func TestProcessResumeUpload_DuplicateReusesRecord(t *testing.T) {
	meta := newFakeMeta()
	svc := newTestIntake(t, meta, newFakeObjectStore(), newFakeCache(), nil)

	data := buildResumeDOCX(t, []string{"Jane Doe", "Go, Python"})

	first, err := svc.ProcessResumeUpload(context.Background(), data, "resume.docx")
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := svc.ProcessResumeUpload(context.Background(), data, "renamed_copy.docx")
	require.NoError(t, err)
	assert.True(t, second.Duplicate, "同样内容换文件名仍应判重")
	assert.Equal(t, first.ResumeID, second.ResumeID)
	assert.Equal(t, 1, meta.createdResumes, "重复上传不应新建记录")
}

func TestProcessResumeUpload_DuplicateWithoutCache(t *testing.T) {
	// Redis不可用时完全依赖数据库查重
	meta := newFakeMeta()
	svc := newTestIntake(t, meta, nil, nil, nil)

	data := buildResumeDOCX(t, []string{"Jane Doe"})

	first, err := svc.ProcessResumeUpload(context.Background(), data, "resume.docx")
	require.NoError(t, err)

	second, err := svc.ProcessResumeUpload(context.Background(), data, "resume.docx")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ResumeID, second.ResumeID)
}

func TestProcessResumeUpload_UnsupportedFormat(t *testing.T) {
	meta := newFakeMeta()
	svc := newTestIntake(t, meta, nil, nil, nil)

	_, err := svc.ProcessResumeUpload(context.Background(), []byte("plain text"), "resume.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrUnsupportedFormat)

	// 记录保留为FAILED，便于排查
	require.Len(t, meta.resumes, 1)
	for id := range meta.resumes {
		assert.Equal(t, constants.ResumeStatusFailed, meta.statusUpdates[id])
	}
}

func TestProcessResumeUpload_CorruptDocument(t *testing.T) {
	meta := newFakeMeta()
	svc := newTestIntake(t, meta, nil, nil, nil)

	_, err := svc.ProcessResumeUpload(context.Background(), []byte("not a zip archive"), "resume.docx")
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrDocumentCorrupt)
}
