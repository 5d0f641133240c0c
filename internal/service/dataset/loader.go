package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	model "github.com/zhouzirui/z-shelter/backend/internal/model/dataset"
)

// maxSourceBytes 单个数据源的大小上限，文件与 HTTP 相同
var maxSourceBytes int64 = 16 << 20

var errSourceTooLarge = errors.New("dataset source exceeds size limit")

var errEmptyDataset = errors.New("dataset contains no records")

// Loader 从文件或 HTTP(S) 地址读取动物记录。
type Loader struct {
	client *http.Client
}

// NewLoader creates a loader. A nil client gets a 15s timeout client.
func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Loader{client: client}
}

// envelope 兼容 {"records": [...]} 与 {"animals": [...]} 两种包装
type envelope struct {
	Records []model.Record `json:"records" yaml:"records"`
	Animals []model.Record `json:"animals" yaml:"animals"`
}

// Load 读取并解析数据集，失败时返回 *model.LoadError，不返回部分结果。
func (l *Loader) Load(ctx context.Context, location string) ([]model.Record, error) {
	location = strings.TrimSpace(location)
	data, format, err := l.read(ctx, location)
	if err != nil {
		log.Printf("[dataset] load %q failed: %v", location, err)
		return nil, err
	}

	records, err := decode(data, format)
	if err != nil {
		loadErr := &model.LoadError{Kind: model.KindMalformed, Location: location, Err: err}
		log.Printf("[dataset] load %q failed: %v", location, loadErr)
		return nil, loadErr
	}

	log.Printf("[dataset] loaded %d records from %q", len(records), location)
	return records, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, string, error) {
	if location == "" {
		return nil, "", &model.LoadError{Kind: model.KindNotFound, Location: location, Err: errors.New("no dataset location configured")}
	}

	u, parseErr := url.Parse(location)
	if parseErr == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l.fetch(ctx, location, u)
		case "file":
			location = u.Path
		}
	}
	return readFile(location)
}

func (l *Loader) fetch(ctx context.Context, location string, u *url.URL) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, "", &model.LoadError{Kind: model.KindUnknown, Location: location, Err: err}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", &model.LoadError{Kind: model.KindUnknown, Location: location, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, "", &model.LoadError{Kind: model.KindNotFound, Location: location, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, "", &model.LoadError{Kind: model.KindUnknown, Location: location, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", &model.LoadError{Kind: model.KindUnknown, Location: location, Err: fmt.Errorf("read body: %w", err)}
	}

	format := formatOf(u.Path)
	if strings.Contains(resp.Header.Get("Content-Type"), "yaml") {
		format = "yaml"
	}
	return data, format, nil
}

func readFile(location string) ([]byte, string, error) {
	f, err := os.Open(location)
	if err != nil {
		kind := model.KindUnknown
		if errors.Is(err, fs.ErrNotExist) {
			kind = model.KindNotFound
		}
		return nil, "", &model.LoadError{Kind: kind, Location: location, Err: err}
	}
	defer f.Close()

	data, err := readLimited(f)
	if err != nil {
		return nil, "", &model.LoadError{Kind: model.KindUnknown, Location: location, Err: err}
	}
	return data, formatOf(location), nil
}

// readLimited 多读一个字节以区分“恰好等于上限”与“超限”
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSourceBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errSourceTooLarge, maxSourceBytes)
	}
	return data, nil
}

func formatOf(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func decode(data []byte, format string) ([]model.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyDataset
	}

	var (
		records []model.Record
		err     error
	)
	if format == "yaml" {
		records, err = decodeYAML(data)
	} else {
		records, err = decodeJSON(data)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errEmptyDataset
	}
	return records, nil
}

func decodeJSON(data []byte) ([]model.Record, error) {
	trimmed := bytes.TrimSpace(data)
	switch trimmed[0] {
	case '[':
		var records []model.Record
		if err := sonic.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode json array: %w", err)
		}
		return records, nil
	case '{':
		var env envelope
		if err := sonic.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode json object: %w", err)
		}
		return env.pick(), nil
	default:
		return nil, errors.New("json dataset must be an array or an object")
	}
}

func decodeYAML(data []byte) ([]model.Record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errEmptyDataset
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var records []model.Record
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode yaml sequence: %w", err)
		}
		return records, nil
	case yaml.MappingNode:
		var env envelope
		if err := root.Decode(&env); err != nil {
			return nil, fmt.Errorf("decode yaml mapping: %w", err)
		}
		return env.pick(), nil
	default:
		return nil, errors.New("yaml dataset must be a sequence or a mapping")
	}
}

func (e envelope) pick() []model.Record {
	if len(e.Records) > 0 {
		return e.Records
	}
	return e.Animals
}
