package slskd

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rymdl/rymdl/internal/model"
)

// NormalizePath converts the broker's mixed path separators to forward
// slashes. Remote peers run a mix of operating systems and the broker
// passes their separators through untouched.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// DirOf returns the directory part of a normalized remote path.
func DirOf(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}

// extensionOf derives a lowercased extension (without dot) from a file
// name. The broker frequently reports an empty extension field even
// when the filename carries one.
func extensionOf(name string) string {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// normalizeExtension cleans a broker-reported extension, deriving it
// from the filename when absent.
func normalizeExtension(ext, name string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext != "" {
		return ext
	}
	return extensionOf(name)
}

// parseFile builds a normalized File from one broker file object.
func parseFile(v gjson.Result) model.File {
	name := NormalizePath(v.Get("filename").String())
	return model.File{
		Name:      name,
		Size:      v.Get("size").Int(),
		BitRate:   int(v.Get("bitRate").Int()),
		Extension: normalizeExtension(v.Get("extension").String(), name),
	}
}

// parseResponse builds a normalized Candidate from one broker search
// response. The broker does not declare a format or bitrate per
// response, so both are derived from the file list.
func parseResponse(v gjson.Result) model.Candidate {
	var files []model.File
	v.Get("files").ForEach(func(_, f gjson.Result) bool {
		files = append(files, parseFile(f))
		return true
	})

	dir := ""
	if len(files) > 0 {
		dir = DirOf(files[0].Name)
	}

	return model.Candidate{
		Username:    v.Get("username").String(),
		Directory:   dir,
		Files:       files,
		Format:      model.DominantFormat(files),
		BitRate:     model.AverageBitRate(files),
		HasFreeSlot: v.Get("hasFreeUploadSlot").Bool(),
		QueueLength: int(v.Get("queueLength").Int()),
		UploadSpeed: v.Get("uploadSpeed").Int(),
	}
}
