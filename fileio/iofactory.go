package fileio

type IOFactory interface {
	NewReader() FileReader
	NewWriter() FileWriter
}

// BufferedFactory is the default factory returning buffered reader/writer instances
type BufferedFactory struct{}

func (b *BufferedFactory) NewReader() FileReader {
	return new(BufferedReader)
}

func (b *BufferedFactory) NewWriter() FileWriter {
	return new(BufferedWriter)
}

// NewFactory returns the LZ4 factory when compress is set, otherwise the buffered one
func NewFactory(compress bool) IOFactory {
	if compress {
		return new(LZ4Factory)
	}
	return new(BufferedFactory)
}
