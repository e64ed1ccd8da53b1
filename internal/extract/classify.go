package extract

import (
	"path"
	"strings"
)

// Category is the kind of asset a reference points at.
type Category int

const (
	CategoryOther Category = iota
	CategoryStylesheet
	CategoryScript
	CategoryImage
	CategoryIcon
	CategoryFont
	CategoryVideo
)

var categoryFolders = map[Category]string{
	CategoryStylesheet: "css",
	CategoryScript:     "js",
	CategoryImage:      "images",
	CategoryIcon:       "icons",
	CategoryFont:       "fonts",
	CategoryVideo:      "videos",
	CategoryOther:      "other",
}

var categoryNames = map[Category]string{
	CategoryStylesheet: "stylesheet",
	CategoryScript:     "script",
	CategoryImage:      "image",
	CategoryIcon:       "icon",
	CategoryFont:       "font",
	CategoryVideo:      "video",
	CategoryOther:      "other",
}

type assetKind struct {
	category Category
	binary   bool
}

// extensionKinds maps a lowercased extension to its category. svg is stored
// with the fonts since icon fonts are the common case in stylesheets.
var extensionKinds = map[string]assetKind{
	"css":   {CategoryStylesheet, false},
	"js":    {CategoryScript, false},
	"gif":   {CategoryImage, true},
	"jpeg":  {CategoryImage, true},
	"jpg":   {CategoryImage, true},
	"png":   {CategoryImage, true},
	"ico":   {CategoryIcon, true},
	"eot":   {CategoryFont, true},
	"svg":   {CategoryFont, false},
	"ttf":   {CategoryFont, true},
	"woff":  {CategoryFont, true},
	"woff2": {CategoryFont, true},
	"mp4":   {CategoryVideo, true},
	"ogv":   {CategoryVideo, true},
	"webm":  {CategoryVideo, true},
	"mov":   {CategoryVideo, true},
	"htm":   {CategoryOther, false},
	"html":  {CategoryOther, false},
}

// Folder returns the output subfolder for c.
func (c Category) Folder() string {
	if f, ok := categoryFolders[c]; ok {
		return f
	}
	return categoryFolders[CategoryOther]
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return categoryNames[CategoryOther]
}

// Extension returns the lowercased text after the last '.' of the final
// segment of p, or "" when there is none.
func Extension(p string) string {
	base := path.Base(p)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// Classify maps the extension of p to a category and reports whether the
// asset must be stored byte-for-byte. Unknown extensions are text "other".
func Classify(p string) (Category, bool) {
	if k, ok := extensionKinds[Extension(p)]; ok {
		return k.category, k.binary
	}
	return CategoryOther, false
}

// Folders lists the category folders bootstrapped for a run.
func Folders(videos bool) []string {
	folders := []string{"css", "fonts", "icons", "images", "js", "other"}
	if videos {
		folders = append(folders, "videos")
	}
	return folders
}
