package compose

import (
	"context"
	"fmt"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
)

// Validate loads the document as a Compose project and reports the references
// left dangling, such as a service attached to an undeclared network.
func Validate(ctx context.Context, doc *Document, projectName string) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	details := types.ConfigDetails{
		WorkingDir: ".",
		ConfigFiles: []types.ConfigFile{
			{Filename: "compose.yaml", Content: data},
		},
		Environment: types.Mapping{},
	}

	_, err = loader.LoadWithContext(ctx, details, func(opts *loader.Options) {
		opts.SetProjectName(projectName, true)
		opts.SkipInterpolation = true
		opts.SkipResolveEnvironment = true
		opts.SkipExtends = true
		opts.ResolvePaths = false
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}

	return nil
}
