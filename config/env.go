package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// loadFromEnv overlays TRAVELKIT_* environment variables onto cfg. Fields carry the
// full variable name in their env tag; nested sections are walked recursively and
// unset or blank variables leave the current value alone.
func loadFromEnv(cfg *Config) error {
	return overlayEnv(reflect.ValueOf(cfg).Elem())
}

func overlayEnv(section reflect.Value) error {
	t := section.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), section.Field(i)
		if !sf.IsExported() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := overlayEnv(fv); err != nil {
				return err
			}
			continue
		}
		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := assignEnv(fv, raw); err != nil {
			return fmt.Errorf("%s (%s): %w", name, sf.Name, err)
		}
	}
	return nil
}

func assignEnv(fv reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	t := fv.Type()

	if t == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", raw)
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q", raw)
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return fmt.Errorf("invalid float %q", raw)
		}
		fv.SetFloat(f)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot decode %s from the environment", t)
		}
		list := reflect.MakeSlice(t, 0, 4)
		for _, item := range splitList(raw) {
			list = reflect.Append(list, reflect.ValueOf(item).Convert(t.Elem()))
		}
		fv.Set(list)
	case reflect.Map:
		if t.Key().Kind() != reflect.String || t.Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot decode %s from the environment", t)
		}
		m := reflect.MakeMapWithSize(t, 4)
		for _, item := range splitList(raw) {
			k, v, ok := strings.Cut(item, "=")
			if !ok {
				return fmt.Errorf("map entry %q is not key=value", item)
			}
			m.SetMapIndex(
				reflect.ValueOf(strings.TrimSpace(k)).Convert(t.Key()),
				reflect.ValueOf(strings.TrimSpace(v)).Convert(t.Elem()),
			)
		}
		fv.Set(m)
	default:
		return fmt.Errorf("cannot decode %s from the environment", t)
	}
	return nil
}

// splitList splits a comma-separated value, trimming entries and dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
