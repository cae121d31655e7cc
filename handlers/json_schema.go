package handlers

import "github.com/xeipuuv/gojsonschema"

var inputSchemas map[string]string = map[string]string{
	"PresignUpload": PresignUploadRequestSchemaDefinition,
	"CreateVideo":   CreateVideoRequestSchemaDefinition,
	"Transcode":     TranscodeRequestSchemaDefinition,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, 0)
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			// panic on program start
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

// Run compile step on program start:
var inputSchemasCompiled map[string]*gojsonschema.Schema = compileJsonSchemas()
