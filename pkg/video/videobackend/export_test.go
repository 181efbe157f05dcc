package videobackend

import "github.com/spf13/afero"

func OverloadFS(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

func NewBufferPoolFrame(encoded []byte) (frameData func() []byte, close func()) {
	p := bufferPool{}
	f := p.frame(encoded)
	return f.Data, f.Close
}
