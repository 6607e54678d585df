package analysis

import "bytes"

// DefaultImageMIME 无法识别时的默认类型
const DefaultImageMIME = "image/jpeg"

var imageSignatures = []struct {
	prefix []byte
	mime   string
}{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
	{[]byte{0x47, 0x49, 0x46, 0x38}, "image/gif"},
	{[]byte{0x42, 0x4D}, "image/bmp"},
}

// DetectImageMIME 根据前四个字节的魔数判断图片类型，默认 image/jpeg
// 这是启发式判断，不是完整的内容嗅探
func DetectImageMIME(data []byte) string {
	head := data
	if len(head) > 4 {
		head = head[:4]
	}
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(head, sig.prefix) {
			return sig.mime
		}
	}
	return DefaultImageMIME
}
