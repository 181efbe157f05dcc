package repos

import (
	"strconv"

	"github.com/tauraamui/dragoncam/pkg/database/dbconn"
	"github.com/tauraamui/dragoncam/pkg/database/models"
	"github.com/tauraamui/xerror"
)

const speedPresetSetting = "speed_preset"

type SettingRepository struct {
	DB dbconn.GormWrapper
}

func (r *SettingRepository) Get(name string) (string, error) {
	setting := models.Setting{}
	if err := r.DB.Where("name = ?", name).First(&setting).Error(); err != nil {
		return "", xerror.Errorf("setting %s not found", name)
	}
	return setting.Value, nil
}

// Set creates the named setting or overwrites its existing value.
func (r *SettingRepository) Set(name, value string) error {
	setting := models.Setting{}
	if err := r.DB.Where("name = ?", name).First(&setting).Error(); err != nil {
		if err := r.DB.Create(&models.Setting{Name: name, Value: value}).Error(); err != nil {
			return xerror.Errorf("unable to create setting %s: %w", name, err)
		}
		return nil
	}

	setting.Value = value
	if err := r.DB.Save(&setting).Error(); err != nil {
		return xerror.Errorf("unable to save setting %s: %w", name, err)
	}
	return nil
}

func (r *SettingRepository) LoadSpeedPreset() (int, error) {
	value, err := r.Get(speedPresetSetting)
	if err != nil {
		return 0, err
	}
	speed, err := strconv.Atoi(value)
	if err != nil {
		return 0, xerror.Errorf("stored speed preset %q is not a number: %w", value, err)
	}
	return speed, nil
}

func (r *SettingRepository) SaveSpeedPreset(speed int) error {
	return r.Set(speedPresetSetting, strconv.Itoa(speed))
}
