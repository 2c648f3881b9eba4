package configs

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Driver   string `mapstructure:"driver"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		DBName   string `mapstructure:"dbname"`
	} `mapstructure:"database"`

	JWT struct {
		Secret    string `mapstructure:"secret"`
		ExpiresIn int    `mapstructure:"expires_in"` // 过期时间（小时）
	} `mapstructure:"jwt"`

	Redis struct {
		Addr         string `mapstructure:"addr"`
		Password     string `mapstructure:"password"`
		DB           int    `mapstructure:"db"`
		ReviewStream string `mapstructure:"review_stream"`
	} `mapstructure:"redis"`

	Provider struct {
		Type      string `mapstructure:"type"` // google 或 simulated
		APIKey    string `mapstructure:"api_key"`
		ProjectID string `mapstructure:"project_id"`
	} `mapstructure:"provider"`

	Moderation ModerationConfig `mapstructure:"moderation"`
}

// ModerationConfig 审核策略配置
// 阈值全部来自配置，避免散落在代码里的魔法数字
type ModerationConfig struct {
	// 有害置信度高于该值直接拒绝
	RejectThreshold float64 `mapstructure:"reject_threshold"`
	// 有害置信度高于该值（且不超过RejectThreshold）转人工审核
	ReviewThreshold float64 `mapstructure:"review_threshold"`
	// 图片最高类别得分低于该值时整个信号按无风险处理
	ImageFloor float64 `mapstructure:"image_floor"`
	// 文本分类类别名中的有害子串标记
	HarmfulMarkers []string `mapstructure:"harmful_markers"`
	// 有害标签词表（子串匹配，大小写不敏感）
	HarmfulLabels []string `mapstructure:"harmful_labels"`
	// 累计警告达到该次数后封禁
	BanWarningThreshold int `mapstructure:"ban_warning_threshold"`
	// 封禁后多少天可以申诉
	AppealWaitDays int `mapstructure:"appeal_wait_days"`
	// 高严重度封禁的置信度界限
	HighSeverityThreshold float64 `mapstructure:"high_severity_threshold"`
	// 单次内容分析的超时时间（秒）
	AnalysisTimeoutSeconds int `mapstructure:"analysis_timeout_seconds"`
}

// Load 加载配置
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults 设置默认值
// 审核阈值默认采用服务端主决策路径的0.7/0.4
func setDefaults() {
	viper.SetDefault("moderation.reject_threshold", 0.7)
	viper.SetDefault("moderation.review_threshold", 0.4)
	viper.SetDefault("moderation.image_floor", 0.4)
	viper.SetDefault("moderation.harmful_markers", []string{"hate", "offensive", "violence", "adult"})
	viper.SetDefault("moderation.harmful_labels", []string{
		"hate_speech", "hate speech",
		"cyberbullying",
		"violence",
		"offensive_language", "offensive language",
		"adult",
		"racy",
		"double_meaning", "double meaning",
	})
	viper.SetDefault("moderation.ban_warning_threshold", 3)
	viper.SetDefault("moderation.appeal_wait_days", 7)
	viper.SetDefault("moderation.high_severity_threshold", 0.8)
	viper.SetDefault("moderation.analysis_timeout_seconds", 10)
	viper.SetDefault("redis.review_stream", "human-review-requests")
	viper.SetDefault("provider.type", "google")
}
