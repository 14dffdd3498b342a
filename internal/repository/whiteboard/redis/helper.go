package redis

import (
	"context"
	"reflect"

	"github.com/redis/go-redis/v9"
)

// hSetStruct writes the exported fields of value using their redis tags.
// Nil pointer fields are skipped.
func (r repo) hSetStruct(ctx context.Context, c redis.Pipeliner, key string, value any) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	fields := make(map[string]any, v.NumField())
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" || tag == "-" {
			continue
		}

		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}

		fields[tag] = field.Interface()
	}

	c.HSet(ctx, key, fields)
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
