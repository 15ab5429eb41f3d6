// context.go carries report tags and custom data through context.Context.

package raygun

import "context"

type tagsKey struct{}
type dataKey struct{}

// ContextWithTags returns a context whose crash reports carry tags in
// addition to any already attached.
func ContextWithTags(ctx context.Context, tags ...string) context.Context {
	if len(tags) == 0 {
		return ctx
	}
	existing := TagsFromContext(ctx)
	merged := make([]string, 0, len(existing)+len(tags))
	merged = append(merged, existing...)
	merged = append(merged, tags...)
	return context.WithValue(ctx, tagsKey{}, merged)
}

// TagsFromContext returns the tags attached to ctx, oldest first.
func TagsFromContext(ctx context.Context) []string {
	tags, _ := ctx.Value(tagsKey{}).([]string)
	return tags
}

// ContextWithData returns a context whose crash reports carry key=value in
// their custom data. Later values for the same key win.
func ContextWithData(ctx context.Context, key string, value any) context.Context {
	existing := DataFromContext(ctx)
	merged := make(map[string]any, len(existing)+1)
	for k, v := range existing {
		merged[k] = v
	}
	merged[key] = value
	return context.WithValue(ctx, dataKey{}, merged)
}

// DataFromContext returns the custom data attached to ctx. The map must not
// be modified.
func DataFromContext(ctx context.Context) map[string]any {
	data, _ := ctx.Value(dataKey{}).(map[string]any)
	return data
}

// MergeTags returns the context tags followed by tags, without duplicates.
func MergeTags(ctx context.Context, tags []string) []string {
	all := append(append([]string{}, TagsFromContext(ctx)...), tags...)
	if len(all) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(all))
	out := all[:0]
	for _, t := range all {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// MergeData returns the context data overlaid with data. Explicit values
// win over context values.
func MergeData(ctx context.Context, data map[string]any) map[string]any {
	fromCtx := DataFromContext(ctx)
	if len(fromCtx) == 0 {
		return data
	}
	out := make(map[string]any, len(fromCtx)+len(data))
	for k, v := range fromCtx {
		out[k] = v
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}
